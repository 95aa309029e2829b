package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/recommend"
	"golang.org/x/term"
)

const cellWidth = 10

func newGridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Inspect seating grids",
	}

	cmd.AddCommand(newGridShowCmd())
	cmd.AddCommand(newGridDistributeCmd())
	cmd.AddCommand(newGridSetCmd())
	return cmd
}

func newGridShowCmd() *cobra.Command {
	var (
		configPath string
		plain      bool
	)

	cmd := &cobra.Command{
		Use:   "show <arrangement-id>",
		Short: "Draw an arrangement, front row first",
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
			v, err := a.svc.Get(context.Background(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "#%d %s %s [%s, version %d]\n", v.ID, v.Date.Format("2006-01-02"), v.Title, v.Status, v.Version)
			renderGrid(out, v.State, !plain && isTerminal(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().BoolVar(&plain, "plain", false, "never draw box borders")
	return cmd
}

func newGridDistributeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribute <singers>",
		Short: "Recommend row capacities for a head count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.Atoi(args[0])
			if err != nil || total < 0 {
				return fmt.Errorf("invalid head count %q", args[0])
			}
			l := recommend.DistributeRows(total)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d singers over %d rows (%d seats)\n", total, l.Rows, grid.TotalSeats(l))
			for i, c := range l.RowCapacities {
				fmt.Fprintf(out, "  row %d: %d\n", i+1, c)
			}
			return nil
		},
	}
	return cmd
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderGrid writes s one row per line. Shifted rows are indented by their
// offset so the zigzag is visible, and a row that still seats someone past
// its capacity is drawn out to that seat.
func renderGrid(w io.Writer, s arrangement.State, boxed bool) {
	for row := 0; row < s.Layout.Rows; row++ {
		off, err := grid.EffectiveOffset(s.Layout, row)
		if err != nil {
			continue
		}
		indent := strings.Repeat(" ", int(off*cellWidth))
		n := s.Width(row)

		cells := make([]string, n)
		for col := 0; col < n; col++ {
			cells[col] = seatLabel(s, grid.Position{Row: row, Col: col})
		}

		label := fmt.Sprintf("%2d ", row+1)
		if !boxed {
			var b strings.Builder
			for _, c := range cells {
				b.WriteString("[" + pad(c, cellWidth-2) + "]")
			}
			fmt.Fprintf(w, "%s%s%s\n", label, indent, b.String())
			continue
		}

		bar := strings.Repeat("─", cellWidth-2)
		var top, mid, bot strings.Builder
		for _, c := range cells {
			top.WriteString("┌" + bar + "┐")
			mid.WriteString("│" + pad(c, cellWidth-2) + "│")
			bot.WriteString("└" + bar + "┘")
		}
		blank := strings.Repeat(" ", len(label))
		fmt.Fprintf(w, "%s%s%s\n", blank, indent, top.String())
		fmt.Fprintf(w, "%s%s%s\n", label, indent, mid.String())
		fmt.Fprintf(w, "%s%s%s\n", blank, indent, bot.String())
	}
}

// seatLabel is "S Anna" for an occupied seat, with a trailing * for a row
// leader, and "" for an empty one.
func seatLabel(s arrangement.State, p grid.Position) string {
	a, ok := s.At(p)
	if !ok {
		return ""
	}
	name := a.MemberName
	if name == "" {
		name = a.MemberID
	}
	label := name
	if a.Part != "" {
		label = string(a.Part)[:1] + " " + name
	}
	if a.IsRowLeader {
		label += "*"
	}
	return label
}

func pad(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s + strings.Repeat(" ", n-len(r))
}
