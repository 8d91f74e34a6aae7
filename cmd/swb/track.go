package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/daemon"
	"github.com/stationhouse/switchboard/internal/dashboard"
	"github.com/stationhouse/switchboard/internal/dispatch"
	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
)

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Inspect and settle coordination requests",
		Long: `Track commands work the journal's coordination events, so they see
requests from every process: a request is pending when it has a tracked
event and no settling event. The watch daemon expires requests on its
own schedule; sweep and cleanup are the manual equivalents.`,
	}

	cmd.AddCommand(newTrackPendingCmd())
	cmd.AddCommand(newTrackResolveCmd())
	cmd.AddCommand(newTrackSweepCmd())
	cmd.AddCommand(newTrackCleanupCmd())
	return cmd
}

func newTrackPendingCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List requests still waiting on a reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackPending(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runTrackPending(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rows := dashboard.PendingRequests(gormDB, nil)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No pending requests.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST\tREQUESTER\tTARGET\tAGE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.RequestID, r.Requester, r.Target, dashboard.TimeAgo(r.CreatedAt))
	}
	return w.Flush()
}

func newTrackResolveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve <request-id>",
		Short: "Settle a pending request by hand",
		Long:  "Marks a pending request answered when the reply arrived out of band, for example over chat or in person.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackResolve(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runTrackResolve(cmd *cobra.Command, configPath, requestID string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	for _, r := range dashboard.PendingRequests(gormDB, nil) {
		if r.RequestID != requestID {
			continue
		}
		if _, err := journal.RecordEvent(gormDB, models.EventResolved, r.RequestID, r.Requester, r.Target); err != nil {
			return err
		}
		fmt.Fprintf(out, "Resolved %s (target %s)\n", r.RequestID, r.Target)
		return nil
	}
	return fmt.Errorf("track: request %q is not pending", requestID)
}

func newTrackSweepCmd() *cobra.Command {
	var (
		configPath string
		olderThan  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire pending requests past their reply window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackSweep(cmd, configPath, olderThan)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().DurationVar(&olderThan, "older-than", dispatch.DefaultReplyTimeout, "expire pending requests tracked longer ago than this")
	return cmd
}

func runTrackSweep(cmd *cobra.Command, configPath string, olderThan time.Duration) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-olderThan)
	expired := 0
	for _, r := range dashboard.PendingRequests(gormDB, nil) {
		if r.CreatedAt.After(cutoff) {
			continue
		}
		if _, err := journal.RecordEvent(gormDB, models.EventExpired, r.RequestID, r.Requester, r.Target); err != nil {
			return err
		}
		fmt.Fprintf(out, "Expired %s (target %s, tracked %s)\n", r.RequestID, r.Target, dashboard.TimeAgo(r.CreatedAt))
		expired++
	}

	if expired == 0 {
		fmt.Fprintf(out, "No pending requests older than %s.\n", olderThan)
	} else {
		fmt.Fprintf(out, "Expired %d request(s)\n", expired)
	}
	return nil
}

func newTrackCleanupCmd() *cobra.Command {
	var (
		configPath string
		retention  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune coordination events for old settled requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackCleanup(cmd, configPath, retention)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().DurationVar(&retention, "retention", daemon.DefaultRetention, "keep settled requests this long")
	return cmd
}

func runTrackCleanup(cmd *cobra.Command, configPath string, retention time.Duration) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-retention)
	var ids []string
	if err := gormDB.Model(&models.CoordinationEvent{}).
		Where("kind IN ? AND created_at < ?", []string{models.EventResolved, models.EventExpired}, cutoff).
		Distinct().
		Pluck("request_id", &ids).Error; err != nil {
		return fmt.Errorf("track: cleanup: %w", err)
	}

	if len(ids) == 0 {
		fmt.Fprintln(out, "No settled requests past retention.")
		return nil
	}

	res := gormDB.Where("request_id IN ?", ids).Delete(&models.CoordinationEvent{})
	if res.Error != nil {
		return fmt.Errorf("track: cleanup: %w", res.Error)
	}

	fmt.Fprintf(out, "Removed %d event row(s) for %d settled request(s)\n", res.RowsAffected, len(ids))
	return nil
}
