package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/stationhouse/switchboard/internal/actuate"
	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/tracker"
)

// FormatIncident formats one journal row by outcome: escalation when
// the file fallback itself failed, failure for any other failed
// delivery, degraded for a fallback success.
func FormatIncident(d models.Delivery) Event {
	switch {
	case !d.Success && d.Channel == string(actuate.ChannelFile):
		return FormatEscalation(d)
	case !d.Success:
		return FormatFailure(d)
	default:
		return FormatDegraded(d)
	}
}

// FormatFailure formats a delivery that failed outright.
func FormatFailure(d models.Delivery) Event {
	title := fmt.Sprintf("Delivery to %s failed", d.Recipient)

	return Event{
		Kind:     KindFailure,
		Title:    title,
		Body:     d.Error,
		Severity: "error",
		Color:    severityColor("error"),
		Fields:   deliveryFields(d),
	}
}

// FormatDegraded formats a delivery that landed on the file fallback.
func FormatDegraded(d models.Delivery) Event {
	title := fmt.Sprintf("Delivery to %s degraded to file drop", d.Recipient)
	body := fmt.Sprintf("Direct injection gave up after %d attempts; the envelope is waiting in the inbox.", d.Attempts)

	return Event{
		Kind:     KindDegraded,
		Title:    title,
		Body:     body,
		Severity: "warning",
		Color:    severityColor("warning"),
		Fields:   deliveryFields(d),
	}
}

// FormatEscalation formats a delivery whose file fallback failed. The
// fallback is the safety net; when it breaks, envelopes are being lost.
func FormatEscalation(d models.Delivery) Event {
	title := fmt.Sprintf("Inbox drop failed for %s", d.Recipient)

	var bodyParts []string
	if d.Error != "" {
		bodyParts = append(bodyParts, d.Error)
	}
	bodyParts = append(bodyParts, fmt.Sprintf("Deliveries to %s are being lost until the inbox storage recovers.", d.Recipient))

	return Event{
		Kind:     KindEscalation,
		Title:    title,
		Body:     strings.Join(bodyParts, "\n"),
		Severity: "error",
		Color:    severityColor("error"),
		Fields:   deliveryFields(d),
	}
}

// FormatExpiries formats a batch of coordination requests that timed
// out without a reply.
func FormatExpiries(reqs []tracker.Request) Event {
	title := fmt.Sprintf("%d coordination requests expired", len(reqs))
	if len(reqs) == 1 {
		title = "1 coordination request expired"
	}

	var bodyLines []string
	for _, req := range reqs {
		bodyLines = append(bodyLines, fmt.Sprintf("%s: %s asked %s, no reply by %s",
			req.ID, req.Requester, req.Target, req.ExpiresAt.Format("15:04:05")))
	}

	fields := []Field{
		{Name: "Count", Value: fmt.Sprintf("%d", len(reqs)), Short: true},
	}
	if len(reqs) > 0 {
		fields = append(fields, Field{Name: "Oldest", Value: reqs[0].ID, Short: true})
	}

	return Event{
		Kind:     KindExpiry,
		Title:    title,
		Body:     strings.Join(bodyLines, "\n"),
		Severity: "warning",
		Color:    severityColor("warning"),
		Fields:   fields,
	}
}

// FormatDigest formats a periodic delivery summary.
func FormatDigest(s journal.Stats, since time.Time) Event {
	var bodyLines []string
	bodyLines = append(bodyLines, fmt.Sprintf("**Deliveries**: %d total, %d direct, %d degraded, %d failed",
		s.Total, s.Direct, s.Degraded, s.Failed))
	if s.Expired > 0 {
		bodyLines = append(bodyLines, fmt.Sprintf("**Expired requests**: %d", s.Expired))
	}
	bodyLines = append(bodyLines, fmt.Sprintf("Window since %s.", since.Format("Jan 2 15:04")))

	severity := "info"
	if s.Failed > 0 || s.Expired > 0 {
		severity = "warning"
	}

	fields := []Field{
		{Name: "Total", Value: fmt.Sprintf("%d", s.Total), Short: true},
		{Name: "Direct", Value: fmt.Sprintf("%d", s.Direct), Short: true},
		{Name: "Degraded", Value: fmt.Sprintf("%d", s.Degraded), Short: true},
		{Name: "Failed", Value: fmt.Sprintf("%d", s.Failed), Short: true},
	}
	if s.Expired > 0 {
		fields = append(fields, Field{Name: "Expired", Value: fmt.Sprintf("%d", s.Expired), Short: true})
	}

	return Event{
		Kind:     KindDigest,
		Title:    "Switchboard digest",
		Body:     strings.Join(bodyLines, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatTest formats the event sent by swb notify test.
func FormatTest() Event {
	return Event{
		Kind:     KindTest,
		Title:    "Switchboard notifier test",
		Body:     "If you can read this, the notifier is wired up.",
		Severity: "info",
		Color:    severityColor("info"),
	}
}

func deliveryFields(d models.Delivery) []Field {
	fields := []Field{
		{Name: "Recipient", Value: d.Recipient, Short: true},
	}
	if d.Sender != "" {
		fields = append(fields, Field{Name: "Sender", Value: d.Sender, Short: true})
	}
	if d.EnvelopeID != "" {
		fields = append(fields, Field{Name: "Envelope", Value: d.EnvelopeID, Short: true})
	}
	if d.Priority != "" {
		fields = append(fields, Field{Name: "Priority", Value: d.Priority, Short: true})
	}
	fields = append(fields, Field{Name: "Attempts", Value: fmt.Sprintf("%d", d.Attempts), Short: true})
	if d.Channel != "" {
		fields = append(fields, Field{Name: "Channel", Value: d.Channel, Short: true})
	}
	return fields
}
