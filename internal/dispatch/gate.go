package dispatch

import (
	"sync"

	"github.com/stationhouse/switchboard/internal/envelope"
)

// gate serializes dispatches to a single recipient and admits waiters in
// priority order: an URGENT dispatch queued behind a busy recipient is
// serviced before any queued NORMAL one.
type gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	busy    bool
	waiting [3]int // waiter count per priority
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// acquire blocks until the recipient is idle and no higher-priority
// dispatch is waiting.
func (g *gate) acquire(p envelope.Priority) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.waiting[p]++
	for g.busy || g.higherWaiting(p) {
		g.cond.Wait()
	}
	g.waiting[p]--
	g.busy = true
}

func (g *gate) release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

// higherWaiting is called with g.mu held.
func (g *gate) higherWaiting(p envelope.Priority) bool {
	for q := int(p) + 1; q < len(g.waiting); q++ {
		if g.waiting[q] > 0 {
			return true
		}
	}
	return false
}
