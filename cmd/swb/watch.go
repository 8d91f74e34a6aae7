package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/config"
	"github.com/stationhouse/switchboard/internal/daemon"
	"github.com/stationhouse/switchboard/internal/dashboard"
	"github.com/stationhouse/switchboard/internal/db"
	"github.com/stationhouse/switchboard/internal/dispatch"
	"github.com/stationhouse/switchboard/internal/relay"
	"github.com/stationhouse/switchboard/internal/report"
	"github.com/stationhouse/switchboard/internal/tracker"
)

func newWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the watch daemon",
		Long: `Runs the sweep-and-report loop: expires overdue coordination requests,
reports delivery incidents, watches the coordinator's inbox for reply
artifacts, and runs scheduled cleanup and digests. Stops on SIGINT or
SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(dbConfig(cfg))
	if err != nil {
		fmt.Fprintf(out, "Warning: journal unavailable, running without incident reporting: %v\n", err)
		gormDB = nil
	}

	trk := tracker.New(tracker.Opts{})

	// Requests tracked by other processes live in the journal; adopt
	// them so their replies resolve and their expiries fire here.
	if gormDB != nil {
		ttl := cfg.Dispatch.ReplyTimeout.Std()
		if ttl <= 0 {
			ttl = dispatch.DefaultReplyTimeout
		}
		pending := dashboard.PendingRequests(gormDB, nil)
		for _, r := range pending {
			trk.Track(r.RequestID, r.Requester, r.Target, ttl)
		}
		if len(pending) > 0 {
			fmt.Fprintf(out, "Adopted %d pending request(s) from the journal\n", len(pending))
		}
	}

	rel, err := relay.New(relay.Opts{
		Tracker: trk,
		DB:      gormDB,
		Dirs:    []string{filepath.Join(cfg.InboxRoot, cfg.Coordinator)},
	})
	if err != nil {
		return err
	}

	notifiers, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	var notifier report.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	} else {
		fmt.Fprintln(out, "No notifiers configured; incidents print here")
	}

	d, err := daemon.New(daemon.Opts{
		Tracker:       trk,
		DB:            gormDB,
		Relay:         rel,
		Notifier:      notifier,
		SweepInterval: cfg.Tracker.SweepInterval.Std(),
		CleanupCron:   cfg.Tracker.CleanupCron,
		DigestCron:    cfg.Tracker.DigestCron,
		Retention:     cfg.Tracker.Retention.Std(),
		Out:           out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return d.Run(ctx)
}
