// Package tracker maintains the table of in-flight request/response
// pairs: messages dispatched with expect-reply semantics whose answers
// have not arrived yet.
package tracker

import (
	"sort"
	"sync"
	"time"
)

// DefaultTTL is the reply deadline used when a dispatch does not name one.
const DefaultTTL = 10 * time.Minute

// DefaultRetention is how long settled requests stay visible before
// cleanup removes them.
const DefaultRetention = 24 * time.Hour

// Status is a coordination request's lifecycle state. Resolved and
// expired are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// Request is one tracked expectation of a correlated reply.
type Request struct {
	ID        string
	Requester string
	Target    string
	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
	SettledAt time.Time // when the request left pending
}

// Opts configures a Tracker.
type Opts struct {
	Now func() time.Time
}

// Tracker owns CoordinationRequest state exclusively. It has its own lock,
// separate from the dispatch lock, so a slow actuation never blocks
// tracking or sweeping. The sweep is externally driven: production runs it
// from the watch daemon's ticker, tests call it directly.
type Tracker struct {
	mu   sync.Mutex
	now  func() time.Time
	reqs map[string]*Request
}

// New creates an empty Tracker.
func New(opts Opts) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{now: opts.Now, reqs: make(map[string]*Request)}
}

// Track registers a pending request. It is idempotent: tracking an id
// that is already present (pending or settled) is a no-op, so retried
// dispatches never double-track. A non-positive ttl falls back to
// DefaultTTL.
func (t *Tracker) Track(requestID, requester, target string, ttl time.Duration) {
	if requestID == "" {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.reqs[requestID]; ok {
		return
	}
	now := t.now()
	t.reqs[requestID] = &Request{
		ID:        requestID,
		Requester: requester,
		Target:    target,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Resolve transitions a pending request to resolved. It reports whether a
// pending entry existed; resolving a settled or unknown id returns false.
func (t *Tracker) Resolve(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.reqs[requestID]
	if !ok || req.Status != StatusPending {
		return false
	}
	req.Status = StatusResolved
	req.SettledAt = t.now()
	return true
}

// Sweep expires every pending request whose deadline passed before now
// and returns their ids, sorted, for reporting.
func (t *Tracker) Sweep(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for id, req := range t.reqs {
		if req.Status == StatusPending && req.ExpiresAt.Before(now) {
			req.Status = StatusExpired
			req.SettledAt = now
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Cleanup removes settled requests older than maxAge (measured from the
// moment they settled) and returns how many were removed. A non-positive
// maxAge falls back to DefaultRetention.
func (t *Tracker) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-maxAge)
	removed := 0
	for id, req := range t.reqs {
		if req.Status != StatusPending && req.SettledAt.Before(cutoff) {
			delete(t.reqs, id)
			removed++
		}
	}
	return removed
}

// Get returns a copy of one tracked request.
func (t *Tracker) Get(requestID string) (Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.reqs[requestID]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Pending returns copies of all pending requests, oldest first.
func (t *Tracker) Pending() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Request
	for _, req := range t.reqs {
		if req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	sortRequests(out)
	return out
}

// Snapshot returns copies of every tracked request, oldest first.
func (t *Tracker) Snapshot() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Request, 0, len(t.reqs))
	for _, req := range t.reqs {
		out = append(out, *req)
	}
	sortRequests(out)
	return out
}

func sortRequests(reqs []Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
