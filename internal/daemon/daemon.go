// Package daemon runs the watch loop: periodic tracker sweeps with
// expiry reporting, journal incident reporting, scheduled cleanup and
// digests, and the reply relay.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/relay"
	"github.com/stationhouse/switchboard/internal/report"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

// Default schedules.
const (
	DefaultSweepInterval = 30 * time.Second
	DefaultCleanupCron   = "0 3 * * *"
	DefaultDigestCron    = "0 17 * * *"
	DefaultRetention     = 24 * time.Hour
)

// Daemon drives the tracker and the reporting layer on a schedule.
type Daemon struct {
	trk           *tracker.Tracker
	db            *gorm.DB
	rel           *relay.Relay
	notifier      report.Notifier
	sweepInterval time.Duration
	cleanupCron   string
	digestCron    string
	retention     time.Duration
	out           io.Writer
	now           func() time.Time

	lastIncidents time.Time // journal rows up to here have been reported
	lastDigest    time.Time // digest window start
}

// Opts holds parameters for creating a Daemon.
type Opts struct {
	Tracker  *tracker.Tracker // required
	DB       *gorm.DB         // optional; enables incident reporting and digests
	Relay    *relay.Relay     // optional reply watcher
	Notifier report.Notifier  // optional; event titles go to Out when unset

	SweepInterval time.Duration // defaults to DefaultSweepInterval
	CleanupCron   string        // 5-field cron, defaults to DefaultCleanupCron
	DigestCron    string        // 5-field cron, defaults to DefaultDigestCron
	Retention     time.Duration // settled-request retention, defaults to DefaultRetention

	Out io.Writer // defaults to os.Stdout
	Now func() time.Time
}

// New creates a Daemon.
func New(opts Opts) (*Daemon, error) {
	if opts.Tracker == nil {
		return nil, fmt.Errorf("daemon: tracker is required")
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.CleanupCron == "" {
		opts.CleanupCron = DefaultCleanupCron
	}
	if opts.DigestCron == "" {
		opts.DigestCron = DefaultDigestCron
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	start := opts.Now()
	return &Daemon{
		trk:           opts.Tracker,
		db:            opts.DB,
		rel:           opts.Relay,
		notifier:      opts.Notifier,
		sweepInterval: opts.SweepInterval,
		cleanupCron:   opts.CleanupCron,
		digestCron:    opts.DigestCron,
		retention:     opts.Retention,
		out:           opts.Out,
		now:           opts.Now,
		lastIncidents: start,
		lastDigest:    start,
	}, nil
}

// Run starts the relay watcher, then blocks driving the sweep ticker
// and the cron timers until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Switchboard watch starting\n")

	var resolutions <-chan relay.Resolution
	if d.rel != nil {
		ch, err := d.rel.Run(ctx)
		if err != nil {
			return fmt.Errorf("daemon: start relay: %w", err)
		}
		resolutions = ch
	}

	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	var cleanupTimer, digestTimer *time.Timer
	if next := nextCronDuration(d.cleanupCron); next > 0 {
		cleanupTimer = time.NewTimer(next)
	}
	if d.db != nil {
		if next := nextCronDuration(d.digestCron); next > 0 {
			digestTimer = time.NewTimer(next)
		}
	}
	defer func() {
		if cleanupTimer != nil {
			cleanupTimer.Stop()
		}
		if digestTimer != nil {
			digestTimer.Stop()
		}
	}()

	fmt.Fprintf(d.out, "Switchboard watch online\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Switchboard watch stopped\n")
			return nil

		case <-ticker.C:
			d.Tick(ctx)

		case <-timerChan(cleanupTimer):
			d.runCleanup()
			if next := nextCronDuration(d.cleanupCron); next > 0 {
				cleanupTimer.Reset(next)
			}

		case <-timerChan(digestTimer):
			d.sendDigest(ctx)
			if next := nextCronDuration(d.digestCron); next > 0 {
				digestTimer.Reset(next)
			}

		case res, ok := <-resolutions:
			if !ok {
				resolutions = nil
				continue
			}
			fmt.Fprintf(d.out, "reply from %s settled request %s\n", res.From, res.RequestID)
		}
	}
}

// Tick runs one sweep-and-report cycle: expire overdue requests, journal
// and report the batch, then report journal incidents that arrived since
// the previous cycle.
func (d *Daemon) Tick(ctx context.Context) {
	now := d.now()

	expired := d.trk.Sweep(now)
	if len(expired) > 0 {
		reqs := make([]tracker.Request, 0, len(expired))
		for _, id := range expired {
			req, ok := d.trk.Get(id)
			if !ok {
				continue
			}
			reqs = append(reqs, req)
			if d.db != nil {
				if _, err := journal.RecordEvent(d.db, models.EventExpired, id, req.Requester, req.Target); err != nil {
					log.Printf("daemon: journal expiry %s: %v", id, err)
				}
			}
		}
		d.notify(ctx, report.FormatExpiries(reqs))
	}

	if d.db != nil {
		rows, err := journal.Incidents(d.db, d.lastIncidents)
		if err != nil {
			log.Printf("daemon: incidents: %v", err)
		} else {
			for _, row := range rows {
				d.notify(ctx, report.FormatIncident(row))
			}
		}
		d.lastIncidents = now
	}
}

// runCleanup drops settled requests past the retention window.
func (d *Daemon) runCleanup() {
	if removed := d.trk.Cleanup(d.retention); removed > 0 {
		fmt.Fprintf(d.out, "cleaned up %d settled requests\n", removed)
	}
}

// sendDigest summarizes the journal since the last digest. An empty
// window is suppressed.
func (d *Daemon) sendDigest(ctx context.Context) {
	now := d.now()
	s, err := journal.Summarize(d.db, d.lastDigest)
	if err != nil {
		log.Printf("daemon: digest: %v", err)
		return
	}
	if s.Total == 0 && s.Expired == 0 {
		d.lastDigest = now
		return
	}
	d.notify(ctx, report.FormatDigest(s, d.lastDigest))
	d.lastDigest = now
}

func (d *Daemon) notify(ctx context.Context, ev report.Event) {
	if d.notifier == nil {
		fmt.Fprintf(d.out, "%s\n", ev.Title)
		return
	}
	if err := d.notifier.Notify(ctx, ev); err != nil {
		log.Printf("daemon: notify: %v", err)
	}
}
