package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/stationhouse/switchboard/internal/actuate"
	"github.com/stationhouse/switchboard/internal/envelope"
)

// Template describes a broadcast before per-recipient envelopes are
// built.
type Template struct {
	Sender       string
	Body         string
	Priority     envelope.Priority
	Tags         []string
	Frame        envelope.FrameKind
	ExpectReply  bool
	ReplyTimeout time.Duration
}

// Broadcast sends the template to every active endpoint in registry
// order. Each recipient gets its own envelope with a distinct id, so
// per-recipient dedup and reply tracking behave the same as for single
// dispatches. Dispatches are serialized with the configured
// inter-dispatch delay. The returned map has one entry per active
// endpoint; trouble with one recipient is captured in its entry and
// never stops the rest of the run.
func (d *Dispatcher) Broadcast(ctx context.Context, tpl Template) (map[string]actuate.Result, error) {
	if envelope.Normalize(tpl.Body) == "" {
		return nil, fmt.Errorf("dispatch: broadcast: %w", envelope.ErrEmptyBody)
	}

	eps := d.reg.ActiveEndpoints()
	results := make(map[string]actuate.Result, len(eps))

	for i, ep := range eps {
		if i > 0 {
			d.sleep(d.broadcastDelay)
		}
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("dispatch: broadcast: %w", err)
		}

		env, err := envelope.Build(tpl.Sender, []string{ep.ID}, tpl.Body, envelope.BuildOpts{
			Priority: tpl.Priority,
			Tags:     tpl.Tags,
			Frame:    tpl.Frame,
			Now:      d.now,
		})
		if err != nil {
			results[ep.ID] = actuate.Result{Err: err}
			continue
		}

		res, err := d.Dispatch(ctx, env, ep.ID, SendOpts{
			ExpectReply:  tpl.ExpectReply,
			ReplyTimeout: tpl.ReplyTimeout,
		})
		if err != nil && res.Err == nil {
			res.Err = err
		}
		results[ep.ID] = res
	}
	return results, nil
}
