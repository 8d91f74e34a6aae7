// Package dispatch routes envelopes to agent endpoints. Direct actuation
// runs under one global lock with bounded retries and backoff; exhausted
// or non-retryable chains fall back to a file drop in the recipient's
// inbox. Dispatches to the same recipient are admitted in priority order,
// and repeat dispatches of the same envelope inside the dedup window
// return the remembered result instead of re-actuating.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stationhouse/switchboard/internal/actuate"
	"github.com/stationhouse/switchboard/internal/envelope"
	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/registry"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

// Dispatch policy defaults.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoff        = 500 * time.Millisecond
	DefaultDedupWindow    = 2 * time.Minute
	DefaultReplyTimeout   = 10 * time.Minute
	DefaultBroadcastDelay = 250 * time.Millisecond
)

// Opts holds parameters for creating a Dispatcher.
type Opts struct {
	Registry *registry.Table
	Actuator *actuate.Actuator
	Tracker  *tracker.Tracker // required for expect-reply dispatches
	DB       *gorm.DB         // optional delivery journal
	Monitor  string           // monitor whose coordinates drive actuation; defaults to the first declared

	MaxAttempts    int
	Backoff        time.Duration
	DedupWindow    time.Duration
	ReplyTimeout   time.Duration
	BroadcastDelay time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

// SendOpts holds optional parameters for a single dispatch.
type SendOpts struct {
	ExpectReply  bool
	ReplyTimeout time.Duration // overrides the dispatcher default
}

// Dispatcher owns the global actuation lock. All direct actuation in the
// process goes through one Dispatcher; file drops bypass the lock.
type Dispatcher struct {
	reg     *registry.Table
	act     *actuate.Actuator
	trk     *tracker.Tracker
	db      *gorm.DB
	monitor string

	maxAttempts    int
	backoff        time.Duration
	dedupWindow    time.Duration
	replyTimeout   time.Duration
	broadcastDelay time.Duration

	now   func() time.Time
	sleep func(time.Duration)

	mu sync.Mutex // global actuation lock

	gateMu sync.Mutex
	gates  map[string]*gate

	seenMu sync.Mutex
	seen   map[string]dedupEntry
}

// New creates a Dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("dispatch: registry is required")
	}
	if opts.Actuator == nil {
		return nil, fmt.Errorf("dispatch: actuator is required")
	}
	if opts.Monitor == "" && len(opts.Registry.Monitors) > 0 {
		opts.Monitor = opts.Registry.Monitors[0].Name
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}
	if opts.BroadcastDelay <= 0 {
		opts.BroadcastDelay = DefaultBroadcastDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Dispatcher{
		reg:            opts.Registry,
		act:            opts.Actuator,
		trk:            opts.Tracker,
		db:             opts.DB,
		monitor:        opts.Monitor,
		maxAttempts:    opts.MaxAttempts,
		backoff:        opts.Backoff,
		dedupWindow:    opts.DedupWindow,
		replyTimeout:   opts.ReplyTimeout,
		broadcastDelay: opts.BroadcastDelay,
		now:            opts.Now,
		sleep:          opts.Sleep,
		gates:          make(map[string]*gate),
		seen:           make(map[string]dedupEntry),
	}, nil
}

// Dispatch delivers one envelope to one recipient. Actuation failures
// come back classified inside the Result; the error return is reserved
// for unknown recipients, cancellation, and fatal storage loss.
func (d *Dispatcher) Dispatch(ctx context.Context, env *envelope.Envelope, recipient string, opts SendOpts) (actuate.Result, error) {
	if env == nil {
		return actuate.Result{}, fmt.Errorf("dispatch: envelope is required")
	}
	if recipient == "" {
		return actuate.Result{}, fmt.Errorf("dispatch: recipient is required")
	}

	if res, ok := d.cached(env.ID, recipient); ok {
		return res, nil
	}

	ep, err := d.reg.Resolve(recipient)
	if err != nil {
		return actuate.Result{}, fmt.Errorf("dispatch: resolve %s: %w", recipient, err)
	}

	start := d.now()
	res, derr := d.deliver(ctx, env, ep)
	d.record(env, ep.ID, res, d.now().Sub(start))
	if derr != nil {
		return res, derr
	}

	if res.Success {
		d.remember(env.ID, ep.ID, res)
		if env.InReplyTo != "" {
			d.resolveReply(env)
		}
		if opts.ExpectReply {
			d.expectReply(env, ep.ID, opts.ReplyTimeout)
		}
	}
	return res, nil
}

// resolveReply settles the tracked request a delivered reply answers.
func (d *Dispatcher) resolveReply(env *envelope.Envelope) {
	if d.trk == nil {
		return
	}
	req, ok := d.trk.Get(env.InReplyTo)
	if !ok {
		return
	}
	if d.trk.Resolve(env.InReplyTo) {
		d.event(models.EventResolved, env.InReplyTo, req.Requester, req.Target)
	}
}

// Unstall focuses the recipient's coordinate and presses Return with no
// payload, re-triggering input handling on a stalled endpoint.
func (d *Dispatcher) Unstall(ctx context.Context, recipient string) (actuate.Result, error) {
	if recipient == "" {
		return actuate.Result{}, fmt.Errorf("dispatch: recipient is required")
	}
	ep, err := d.reg.Resolve(recipient)
	if err != nil {
		return actuate.Result{}, fmt.Errorf("dispatch: resolve %s: %w", recipient, err)
	}
	if err := ctx.Err(); err != nil {
		return actuate.Result{}, fmt.Errorf("dispatch: unstall %s: %w", recipient, err)
	}

	start := d.now()
	var res actuate.Result
	coord, ok := ep.CoordinateOn(d.monitor)
	if !ok {
		res = actuate.Result{
			Channel: actuate.ChannelDirect,
			Err:     fmt.Errorf("%w: %s has no coordinate on monitor %q", actuate.ErrCoordinateInvalid, ep.ID, d.monitor),
		}
	} else {
		// Unstalls jump queued traffic.
		g := d.gateFor(ep.ID)
		g.acquire(envelope.PriorityUrgent)
		d.mu.Lock()
		res = d.act.Poke(coord)
		d.mu.Unlock()
		g.release()
	}

	if d.db != nil {
		if _, jerr := journal.RecordUnstall(d.db, ep.ID, res, d.now().Sub(start)); jerr != nil {
			log.Printf("dispatch: journal unstall: %v", jerr)
		}
	}
	return res, nil
}

// deliver runs the direct attempt chain under the recipient gate and the
// global lock, then falls back to a file drop. The returned error is
// non-nil only for cancellation and fatal storage loss.
func (d *Dispatcher) deliver(ctx context.Context, env *envelope.Envelope, ep registry.Endpoint) (actuate.Result, error) {
	last := actuate.Result{Channel: actuate.ChannelDirect}

	coord, hasCoord := ep.CoordinateOn(d.monitor)
	if !hasCoord {
		last.Err = fmt.Errorf("%w: %s has no coordinate on monitor %q", actuate.ErrCoordinateInvalid, ep.ID, d.monitor)
	} else {
		g := d.gateFor(ep.ID)
		g.acquire(env.Priority)

		var cancelled error
		delay := d.backoff
		for last.Attempts < d.maxAttempts {
			if err := ctx.Err(); err != nil {
				cancelled = err
				break
			}
			d.mu.Lock()
			res := d.act.Direct(coord, ep.ID, env)
			d.mu.Unlock()
			res.Attempts = last.Attempts + 1
			last = res
			if last.Success || !actuate.Retryable(last.Err) {
				break
			}
			if last.Attempts < d.maxAttempts {
				d.sleep(delay)
				delay *= 2
			}
		}
		g.release()

		if cancelled != nil {
			return last, fmt.Errorf("dispatch: deliver to %s: %w", ep.ID, cancelled)
		}
	}

	if last.Success {
		return last, nil
	}

	// Direct delivery is spent; drop the envelope in the recipient's
	// inbox. Drops run outside the lock so parallel fallbacks never
	// serialize behind an actuation.
	drop, err := d.act.Drop(ep.ID, env)
	drop.Attempts = last.Attempts + 1
	if err != nil {
		return drop, fmt.Errorf("dispatch: fallback for %s: %w", ep.ID, err)
	}
	return drop, nil
}

// expectReply registers a pending coordination request for the envelope.
func (d *Dispatcher) expectReply(env *envelope.Envelope, recipient string, ttl time.Duration) {
	if d.trk == nil {
		log.Printf("dispatch: expect-reply for %s ignored: no tracker attached", recipient)
		return
	}
	if ttl <= 0 {
		ttl = d.replyTimeout
	}
	d.trk.Track(env.ID, env.Sender, recipient, ttl)
	d.event(models.EventTracked, env.ID, env.Sender, recipient)
}

func (d *Dispatcher) gateFor(recipient string) *gate {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()

	g, ok := d.gates[recipient]
	if !ok {
		g = newGate()
		d.gates[recipient] = g
	}
	return g
}

func (d *Dispatcher) record(env *envelope.Envelope, recipient string, res actuate.Result, latency time.Duration) {
	if d.db == nil {
		return
	}
	if _, err := journal.Record(d.db, env, recipient, res, latency); err != nil {
		log.Printf("dispatch: journal delivery: %v", err)
	}
}

func (d *Dispatcher) event(kind, requestID, requester, target string) {
	if d.db == nil {
		return
	}
	if _, err := journal.RecordEvent(d.db, kind, requestID, requester, target); err != nil {
		log.Printf("dispatch: journal event: %v", err)
	}
}
