package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/service"
)

func newSeatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seat",
		Short: "Edit seats by hand",
		Long: `Places, moves and removes singers one seat at a time. Seats are 1-based
"row-col" keys such as 2-5.`,
	}

	cmd.AddCommand(newSeatEditCmd("place <arrangement-id> <member-id> <seat>", "Seat a singer, clearing their previous seat", service.EditPlace, 3))
	cmd.AddCommand(newSeatEditCmd("move <arrangement-id> <seat> <to>", "Move a singer, swapping with anyone already there", service.EditMove, 3))
	cmd.AddCommand(newSeatEditCmd("remove <arrangement-id> <seat>", "Clear a seat", service.EditRemove, 2))
	cmd.AddCommand(newSeatEditCmd("leader <arrangement-id> <seat>", "Toggle the row-leader mark of a seat", service.EditLeader, 2))
	return cmd
}

func newSeatEditCmd(use, short string, op service.EditOp, nargs int) *cobra.Command {
	var (
		configPath string
		ifVersion  int
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := seatEdit(op, args[1:])
			if err != nil {
				return err
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			v, err := a.svc.EditSeats(context.Background(), id, ifVersion, []service.Edit{e})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Arrangement %d saved as version %d (%d seated)\n", v.ID, v.Version, len(v.State.Seats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().IntVar(&ifVersion, "if-version", 0, "fail unless the arrangement is at this version")
	return cmd
}

// seatEdit builds an edit from the arguments after the arrangement id.
func seatEdit(op service.EditOp, args []string) (service.Edit, error) {
	e := service.Edit{Op: op}
	var err error
	switch op {
	case service.EditPlace:
		e.MemberID = args[0]
		e.Pos, err = grid.ParseKey(args[1])
	case service.EditMove:
		if e.Pos, err = grid.ParseKey(args[0]); err == nil {
			e.To, err = grid.ParseKey(args[1])
		}
	default:
		e.Pos, err = grid.ParseKey(args[0])
	}
	return e, err
}

func newGridSetCmd() *cobra.Command {
	var (
		configPath string
		capacities []int
		zigzag     string
	)

	cmd := &cobra.Command{
		Use:   "set <arrangement-id>",
		Short: "Change the grid of an arrangement",
		Long: `Replaces the row capacities and zigzag pattern of an arrangement. Flags left
out keep their current value. Singers who no longer fit are unseated and listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			ctx := context.Background()
			cur, err := a.svc.Get(ctx, id)
			if err != nil {
				return err
			}
			layout := cur.State.Layout.Clone()
			if cmd.Flags().Changed("capacities") {
				layout.Rows = len(capacities)
				layout.RowCapacities = append([]int(nil), capacities...)
			}
			if zigzag != "" {
				layout.Zigzag = grid.Zigzag(zigzag)
			}
			v, dropped, err := a.svc.SetLayout(ctx, id, cur.Version, layout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Arrangement %d saved as version %d (%d rows, %d seats)\n",
				v.ID, v.Version, v.State.Layout.Rows, grid.TotalSeats(v.State.Layout))
			printDropped(out, dropped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	cmd.Flags().IntSliceVar(&capacities, "capacities", nil, "seats per row, front row first")
	cmd.Flags().StringVar(&zigzag, "zigzag", "", "zigzag pattern: none, even or odd")
	return cmd
}

func printDropped(w io.Writer, dropped []arrangement.Assignment) {
	if len(dropped) == 0 {
		return
	}
	fmt.Fprintf(w, "%d singer(s) unseated:\n", len(dropped))
	for _, d := range dropped {
		fmt.Fprintf(w, "  %s %s (%s)\n", d.Pos.Key(), d.MemberName, d.Part)
	}
}

func newWorkflowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "workflow <arrangement-id> <complete|uncomplete|goto|advance> [step]",
		Short: "Move an arrangement through its authoring steps",
		Long: `Steps are numbered 1 to 7: distribute rows, adjust grid, auto-place,
manual fix-ups, row offsets, row leaders and share. advance takes no step.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			action, err := service.ParseWorkflowAction(args[1])
			if err != nil {
				return err
			}
			step := 0
			if action != service.WorkflowAdvance {
				if len(args) < 3 {
					return fmt.Errorf("%s needs a step number", action)
				}
				if step, err = strconv.Atoi(args[2]); err != nil {
					return fmt.Errorf("invalid step %q", args[2])
				}
			}
			a, err := openApp(configPath, true)
			if err != nil {
				return err
			}
			v, err := a.svc.Workflow(context.Background(), id, 0, action, step)
			if err != nil {
				return err
			}
			printWorkflow(cmd.OutOrStdout(), v.Workflow)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to seatplan config file")
	return cmd
}

func printWorkflow(w io.Writer, wf *arrangement.Workflow) {
	for s := arrangement.FirstStep; s <= arrangement.LastStep; s++ {
		mark := " "
		if wf.IsComplete(s) {
			mark = "x"
		}
		cur := ""
		if s == wf.Current {
			cur = "  <- current"
		}
		fmt.Fprintf(w, "[%s] %d. %s%s\n", mark, s, arrangement.StepName(s), cur)
	}
}
