package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/stats"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Learn preferred seats from past arrangements",
	}

	cmd.AddCommand(newStatsRunCmd())
	cmd.AddCommand(newStatsScheduleCmd())
	return cmd
}

// statsJob builds the preferred-seat job from the stats section of the config.
func statsJob(a *app) *stats.Job {
	return &stats.Job{
		Repo: a.store,
		Config: stats.Config{
			MinAppearances:  a.cfg.Stats.MinAppearances,
			HighConsistency: a.cfg.Stats.HighConsistency,
			ColTolerance:    a.cfg.Stats.ColTolerance,
		},
		Lookback: a.cfg.Stats.Lookback,
		Log:      a.log,
	}
}

func newStatsRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recompute preferred seats once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			sum, err := statsJob(a).Run(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preferences for %d members (%d fixed)\n", sum.Members, sum.Fixed)
			fmt.Fprintf(cmd.OutOrStdout(), "Average consistency: row %.2f, column %.2f\n", sum.AvgRowConsistency, sum.AvgColConsistency)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}

func newStatsScheduleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Recompute preferred seats on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, false)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			sched, err := stats.NewScheduler(a.cfg.Stats.Schedule, statsJob(a), a.log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Running preferred-seat job on %q (Ctrl-C to stop)\n", a.cfg.Stats.Schedule)
			sched.Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}
