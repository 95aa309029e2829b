package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sp",
		Short: "Seatplan: choir seat arrangements",
		Long: `Seatplan builds choir seat arrangements: it recommends a seating for the
singers available on a date, reuses past seatings, picks row leaders and
repairs a published arrangement when someone drops out at the last minute.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRecommendCmd())
	cmd.AddCommand(newApplyPastCmd())
	cmd.AddCommand(newLeadersCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newEmergencyCmd())
	cmd.AddCommand(newAttendanceCmd())
	cmd.AddCommand(newGridCmd())
	cmd.AddCommand(newSeatCmd())
	cmd.AddCommand(newWorkflowCmd())
	cmd.AddCommand(newStatsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sp %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
