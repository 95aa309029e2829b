package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/emergency"
	"github.com/zulandar/seatplan/internal/store"
)

func newEmergencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emergency",
		Short: "Last-minute changes to a published arrangement",
	}

	cmd.AddCommand(newEmergencyUnavailableCmd())
	cmd.AddCommand(newEmergencyAvailableCmd())
	cmd.AddCommand(newEmergencyLogCmd())
	return cmd
}

func newEmergencyUnavailableCmd() *cobra.Command {
	var (
		configPath string
		preview    bool
	)

	cmd := &cobra.Command{
		Use:   "unavailable <arrangement-id> <member-id>",
		Short: "Take a singer off the arrangement",
		Long:  "Removes the singer and repairs the row using emergency.unavailable_mode from the config.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			if preview {
				res, err := a.svc.PreviewUnavailable(context.Background(), id, args[1])
				if err != nil {
					return err
				}
				printPreview(cmd.OutOrStdout(), res)
				return nil
			}
			rec, err := a.svc.MarkUnavailable(context.Background(), id, args[1])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().BoolVar(&preview, "preview", false, "show the change without saving or announcing it")
	return cmd
}

func newEmergencyAvailableCmd() *cobra.Command {
	var (
		configPath, mode string
		preview          bool
	)

	cmd := &cobra.Command{
		Use:   "available <arrangement-id> <member-id>",
		Short: "Seat a singer who can sing after all",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pm, err := emergency.ParsePlaceMode(mode)
			if err != nil {
				return err
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			if preview {
				res, err := a.svc.PreviewAvailable(context.Background(), id, args[1], pm)
				if err != nil {
					return err
				}
				printPreview(cmd.OutOrStdout(), res)
				return nil
			}
			rec, err := a.svc.MarkAvailable(context.Background(), id, args[1], pm)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().StringVarP(&mode, "mode", "m", "auto", "placement mode: auto or manual")
	cmd.Flags().BoolVar(&preview, "preview", false, "show the change without saving or announcing it")
	return cmd
}

func newEmergencyLogCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "log <arrangement-id>",
		Short: "Show the emergency changes of an arrangement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			recs, err := a.svc.Changes(context.Background(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No emergency changes.")
				return nil
			}
			for _, r := range recs {
				printRecord(out, r)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}

func printPreview(w io.Writer, res emergency.Result) {
	fmt.Fprintln(w, "Preview, nothing saved:")
	printRecord(w, res.Record)
	renderGrid(w, res.State, false)
}

func printRecord(w io.Writer, rec emergency.Record) {
	fmt.Fprintf(w, "%s %s %s (%s) [%s] at %s\n",
		rec.ID, rec.Type, rec.MemberName, rec.Part, rec.ProcessMode, rec.Timestamp.Format(time.RFC3339))
	for i, s := range rec.Steps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, s.Describe())
	}
	fmt.Fprintf(w, "  %d other singer(s) moved\n", rec.MovedMemberCount)
}

func newAttendanceCmd() *cobra.Command {
	var (
		configPath string
		absent     bool
	)

	cmd := &cobra.Command{
		Use:   "attendance <member-id> <date>",
		Short: "Record whether a singer can sing on a date",
		Long:  "Marks a singer present (default) or --absent for a date (YYYY-MM-DD) before an arrangement is built.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := time.Parse("2006-01-02", args[1])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			ctx := context.Background()
			m, err := a.store.Member(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.store.SetAttendance(ctx, m.ID, date, !absent); err != nil {
				return err
			}
			state := "present"
			if absent {
				state = "absent"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s on %s\n", m.Name, state, store.Day(date).Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().BoolVar(&absent, "absent", false, "mark the singer absent")
	return cmd
}
