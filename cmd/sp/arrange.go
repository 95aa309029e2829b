package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/recommend"
)

func newCreateCmd() *cobra.Command {
	var (
		configPath string
		title      string
		distribute int
	)

	cmd := &cobra.Command{
		Use:   "create <date>",
		Short: "Create an empty DRAFT arrangement",
		Long: `Creates an arrangement for a date (YYYY-MM-DD). The grid comes from the
config unless --distribute gives a head count to size it from.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, configPath, args[0], title, distribute)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().StringVarP(&title, "title", "t", "", "arrangement title")
	cmd.Flags().IntVar(&distribute, "distribute", 0, "size the grid for this many singers")
	return cmd
}

func runCreate(cmd *cobra.Command, configPath, dateArg, title string, distribute int) error {
	date, err := time.Parse("2006-01-02", dateArg)
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	a, err := openApp(configPath, true)
	if err != nil {
		return err
	}

	layout := grid.Layout{
		Rows:          a.cfg.Grid.Rows,
		RowCapacities: append([]int(nil), a.cfg.Grid.Capacities...),
		Zigzag:        grid.Zigzag(a.cfg.Grid.Zigzag),
	}
	if distribute > 0 {
		layout = recommend.DistributeRows(distribute)
	}
	meta, err := a.svc.Create(context.Background(), date, title, layout)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created arrangement %d for %s (%d rows, %d seats)\n",
		meta.ID, meta.Date.Format("2006-01-02"), layout.Rows, grid.TotalSeats(layout))
	return nil
}

func newListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List arrangements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			metas, err := a.svc.List(context.Background(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tSTATUS\tVERSION\tTITLE")
			for _, m := range metas {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", m.ID, m.Date.Format("2006-01-02"), m.Status, m.Version, m.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max arrangements to show")
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "recommend <arrangement-id>",
		Short: "Seat the available singers automatically",
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
			res, err := a.svc.Recommend(context.Background(), id, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "Seated %d singers (source: %s, quality %.2f)\n", len(res.State.Seats), res.Source, res.QualityScore)
			if len(res.Unassigned) > 0 {
				fmt.Fprintf(out, "Unassigned: %s\n", strings.Join(res.Unassigned, ", "))
			}
			renderGrid(out, res.State, isTerminal(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API response body")
	return cmd
}

func newApplyPastCmd() *cobra.Command {
	var (
		configPath string
		source     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "apply-past <arrangement-id> --source <id>",
		Short: "Reuse a past seating for the singers available now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			src, err := parseID(source)
			if err != nil {
				return fmt.Errorf("--source: %w", err)
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			res, err := a.svc.ApplyPast(context.Background(), id, src, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "Matched %d of %d singers from arrangement %d\n", res.MatchedCount, res.TotalAvailable, src)
			for _, u := range res.Unassigned {
				fmt.Fprintf(out, "  unassigned: %s (%s) %s\n", u.Name, u.Part, u.Reason)
			}
			renderGrid(out, res.State, isTerminal(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().StringVarP(&source, "source", "s", "", "past arrangement to copy from")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API response body")
	cmd.MarkFlagRequired("source")
	return cmd
}

func newLeadersCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "leaders <arrangement-id>",
		Short: "Recompute the row-leader seats",
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
			cands, err := a.svc.AssignLeaders(context.Background(), id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEAT\tPART\tSIDE\tROLE")
			for _, c := range cands {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Pos.Key(), c.Part, c.Side, c.Role)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <arrangement-id> <draft|shared|confirmed>",
		Short: "Change the publication status of an arrangement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			to := arrangement.Status(strings.ToUpper(args[1]))
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			version, err := a.svc.SetStatus(context.Background(), id, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Arrangement %d is now %s (version %d)\n", id, to, version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
