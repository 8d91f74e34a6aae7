package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
)

func newLogCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		failures   bool
		recipient  string
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent deliveries from the journal",
		Long:  "Displays delivery outcomes recorded in the journal, newest first. Use --failures for the failure window, or --recipient to follow one agent's traffic.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, configPath, logOpts{
				limit:     limit,
				failures:  failures,
				recipient: recipient,
				since:     since,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deliveries to show")
	cmd.Flags().BoolVar(&failures, "failures", false, "show only failed deliveries")
	cmd.Flags().StringVar(&recipient, "recipient", "", "filter by recipient agent id")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "window for --failures")
	return cmd
}

type logOpts struct {
	limit     int
	failures  bool
	recipient string
	since     time.Duration
}

func runLog(cmd *cobra.Command, configPath string, opts logOpts) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var rows []models.Delivery
	switch {
	case opts.failures:
		rows, err = journal.Failures(gormDB, time.Now().Add(-opts.since))
	case opts.recipient != "":
		rows, err = journal.ForRecipient(gormDB, opts.recipient, opts.limit)
	default:
		rows, err = journal.Recent(gormDB, opts.limit)
	}
	if err != nil {
		return err
	}
	if opts.failures && opts.limit > 0 && len(rows) > opts.limit {
		rows = rows[:opts.limit]
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No deliveries recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tENVELOPE\tFROM\tTO\tPRI\tCHANNEL\tSTATUS\tATT\tLAT\tERROR")
	for _, d := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			d.CreatedAt.Format("15:04:05"),
			shortID(d.EnvelopeID),
			d.Sender,
			d.Recipient,
			d.Priority,
			d.Channel,
			deliveryLabel(d),
			d.Attempts,
			d.LatencyMs,
			truncate(d.Error, 48),
		)
	}
	return w.Flush()
}
