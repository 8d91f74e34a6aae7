package report

import (
	"context"
	"sync"
)

// Mock implements Notifier for testing. It records delivered events and
// can be set to fail on demand.
type Mock struct {
	mu     sync.Mutex
	events []Event
	closed bool
	err    error
}

// NewMock creates a Mock notifier.
func NewMock() *Mock {
	return &Mock{}
}

// SetErr makes subsequent Notify calls return err. Pass nil to recover.
func (m *Mock) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Notify records the event.
func (m *Mock) Notify(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// AllEvents returns a copy of every recorded event.
func (m *Mock) AllEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// LastEvent returns the most recently recorded event.
// Returns zero value and false if nothing was recorded.
func (m *Mock) LastEvent() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return Event{}, false
	}
	return m.events[len(m.events)-1], true
}

// EventCount returns the number of recorded events.
func (m *Mock) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
