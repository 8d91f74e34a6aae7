// Package report formats delivery and coordination incidents and fans
// them out to notifier adapters (Slack, Discord, GitHub).
package report

import (
	"context"
	"errors"
)

// Kind classifies an event so adapters can filter what they carry. The
// chat adapters forward everything; the GitHub adapter files issues
// only for escalations and expiry batches.
type Kind string

const (
	KindFailure    Kind = "failure"    // delivery failed outright
	KindDegraded   Kind = "degraded"   // delivered via file fallback
	KindExpiry     Kind = "expiry"     // coordination requests timed out
	KindEscalation Kind = "escalation" // the fallback safety net itself failed
	KindDigest     Kind = "digest"     // periodic summary
	KindTest       Kind = "test"       // swb notify test
)

// Notifier is the interface platform adapters implement. Notify carries
// one formatted event; adapters that filter by kind return nil for
// events they skip.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// Event is one incident formatted for display.
type Event struct {
	Kind     Kind
	Title    string  // headline (e.g. "Delivery to ash failed")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Multi fans one event out to several notifiers. Every notifier sees
// the event even when an earlier one fails; the errors are joined.
type Multi []Notifier

// Notify delivers the event to every notifier in order.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
