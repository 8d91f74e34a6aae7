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
		Use:   "swb",
		Short: "Switchboard — multi-agent message dispatch",
		Long:  "Switchboard delivers messages between terminal agents by typing into their windows, with inbox fallback, reply tracking, and incident reporting.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newNudgeCmd())
	cmd.AddCommand(newRegistryCmd())
	cmd.AddCommand(newTrackCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newNotifyCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swb %s (commit: %s, built: %s)\n", Version, Commit, Date)
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
