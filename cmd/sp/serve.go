package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/api"
	"github.com/zulandar/seatplan/internal/stats"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		withStats  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves the arrangement API. With --stats the preferred-seat job also runs on its cron schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, withStats)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&withStats, "stats", false, "run the preferred-seat job on its schedule")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, withStats bool) error {
	a, err := openApp(configPath, false)
	if err != nil {
		return err
	}
	defer a.log.Sync()
	if port <= 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if withStats {
		sched, err := stats.NewScheduler(a.cfg.Stats.Schedule, statsJob(a), a.log)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Preferred-seat job scheduled: %s\n", a.cfg.Stats.Schedule)
	}

	opts := api.StartOpts{
		Service: a.svc,
		Port:    port,
		Out:     cmd.OutOrStdout(),
		Log:     a.log,
	}
	if a.remote != nil {
		opts.Recommender = a.remote
	}
	return api.Start(ctx, opts)
}
