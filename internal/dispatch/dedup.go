package dispatch

import (
	"time"

	"github.com/stationhouse/switchboard/internal/actuate"
)

// dedupEntry remembers a delivered result so an identical redispatch
// inside the window returns it instead of re-actuating. Only successes
// are remembered; a failed dispatch should actuate again when retried.
type dedupEntry struct {
	res actuate.Result
	at  time.Time
}

func dedupKey(envelopeID, recipient string) string {
	return envelopeID + "|" + recipient
}

// cached returns the remembered result for an (envelope, recipient) pair
// while it is still inside the dedup window.
func (d *Dispatcher) cached(envelopeID, recipient string) (actuate.Result, bool) {
	d.seenMu.Lock()
	defer d.seenMu.Unlock()

	key := dedupKey(envelopeID, recipient)
	e, ok := d.seen[key]
	if !ok {
		return actuate.Result{}, false
	}
	if d.now().Sub(e.at) > d.dedupWindow {
		delete(d.seen, key)
		return actuate.Result{}, false
	}
	return e.res, true
}

// remember stores a successful result and prunes entries that have aged
// out of the window.
func (d *Dispatcher) remember(envelopeID, recipient string, res actuate.Result) {
	d.seenMu.Lock()
	defer d.seenMu.Unlock()

	now := d.now()
	for k, e := range d.seen {
		if now.Sub(e.at) > d.dedupWindow {
			delete(d.seen, k)
		}
	}
	d.seen[dedupKey(envelopeID, recipient)] = dedupEntry{res: res, at: now}
}
