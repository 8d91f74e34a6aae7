// Package envelope builds the immutable message envelopes exchanged
// between agents. An envelope is constructed once and resent verbatim on
// retry; downstream deduplication depends on the id never changing.
package envelope

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation failures. Build rejects a request before any I/O happens.
var (
	ErrNoRecipients = errors.New("envelope: at least one recipient is required")
	ErrEmptyBody    = errors.New("envelope: body is empty after normalization")
)

// Priority orders competing dispatches for the same recipient.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityUrgent
)

// String returns the wire spelling of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "URGENT"
	case PriorityHigh:
		return "HIGH"
	default:
		return "NORMAL"
	}
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NORMAL":
		return PriorityNormal, nil
	case "HIGH":
		return PriorityHigh, nil
	case "URGENT":
		return PriorityUrgent, nil
	default:
		return PriorityNormal, fmt.Errorf("envelope: unknown priority %q", s)
	}
}

// FrameKind is the message-origin classification governing how an
// envelope is rendered for its recipient.
type FrameKind string

const (
	FrameAuto        FrameKind = "auto"
	FrameAgent       FrameKind = "agent-to-agent"
	FrameSystem      FrameKind = "system-to-agent"
	FrameHuman       FrameKind = "human-to-agent"
	FrameCoordinator FrameKind = "coordinator-to-agent"
	FrameGeneric     FrameKind = "generic"
)

// ParseFrameKind accepts both the full frame names and their short forms
// (agent, system, human, coordinator, generic, auto).
func ParseFrameKind(s string) (FrameKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FrameAuto, nil
	case "agent", string(FrameAgent):
		return FrameAgent, nil
	case "system", string(FrameSystem):
		return FrameSystem, nil
	case "human", string(FrameHuman):
		return FrameHuman, nil
	case "coordinator", string(FrameCoordinator):
		return FrameCoordinator, nil
	case "generic":
		return FrameGeneric, nil
	default:
		return FrameGeneric, fmt.Errorf("envelope: unknown frame kind %q", s)
	}
}

// Envelope is a single addressed message. Treat a built envelope as
// read-only; retries must resend it unchanged.
type Envelope struct {
	ID         string
	Sender     string
	Recipients []string
	Priority   Priority
	Tags       []string
	Body       string
	Frame      FrameKind
	InReplyTo  string // id of the message this one answers, if any
	CreatedAt  time.Time
}

// BuildOpts holds optional parameters for building an envelope.
type BuildOpts struct {
	Priority   Priority
	Tags       []string
	Frame      FrameKind  // FrameAuto (default) classifies by sender
	InReplyTo  string     // marks the envelope as a reply
	Classifier Classifier // zero value falls back to DefaultClassifier
	Now        func() time.Time
}

// Build constructs an envelope from a sender, recipients, and a raw body.
// The body is normalized, the tag set is deduplicated and sorted, and the
// frame kind is resolved from the sender identity when left on auto.
func Build(sender string, recipients []string, body string, opts BuildOpts) (*Envelope, error) {
	to := make([]string, 0, len(recipients))
	seen := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		to = append(to, r)
	}
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	normalized := Normalize(body)
	if normalized == "" {
		return nil, ErrEmptyBody
	}

	frame := opts.Frame
	if frame == "" || frame == FrameAuto {
		frame = opts.Classifier.Classify(sender)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Envelope{
		ID:         uuid.NewString(),
		Sender:     sender,
		Recipients: to,
		Priority:   opts.Priority,
		Tags:       normalizeTags(opts.Tags),
		Body:       normalized,
		Frame:      frame,
		InReplyTo:  strings.TrimSpace(opts.InReplyTo),
		CreatedAt:  now(),
	}, nil
}

// Normalize rewrites raw line breaks into the canonical paragraph
// separator. Every run of line breaks (including whitespace-only lines)
// collapses to one blank line, so single vs. double newline input renders
// identically downstream. Normalize is idempotent.
func Normalize(body string) string {
	s := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(body)

	var paras []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		paras = append(paras, line)
	}
	return strings.Join(paras, "\n\n")
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
