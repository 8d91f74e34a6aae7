package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/tracker"
)

func failedDelivery() models.Delivery {
	return models.Delivery{
		EnvelopeID: "7f9c24e5",
		Sender:     "captain",
		Recipient:  "ash",
		Priority:   "HIGH",
		Channel:    "direct",
		Success:    false,
		Attempts:   3,
		Error:      "actuate: target unresponsive: focus not acquired at (100,200)",
	}
}

// --- FormatFailure tests ---

func TestFormatFailure(t *testing.T) {
	e := FormatFailure(failedDelivery())
	if e.Kind != KindFailure {
		t.Errorf("kind = %q, want %q", e.Kind, KindFailure)
	}
	if e.Title != "Delivery to ash failed" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Body, "target unresponsive") {
		t.Errorf("body should carry the classified error, got %q", e.Body)
	}
	if e.Severity != "error" {
		t.Errorf("severity = %q, want error", e.Severity)
	}
	if e.Color != ColorError {
		t.Errorf("color = %q, want %q", e.Color, ColorError)
	}
}

func TestFormatFailure_Fields(t *testing.T) {
	e := FormatFailure(failedDelivery())

	byName := map[string]string{}
	for _, f := range e.Fields {
		byName[f.Name] = f.Value
	}
	if byName["Recipient"] != "ash" {
		t.Errorf("Recipient field = %q", byName["Recipient"])
	}
	if byName["Envelope"] != "7f9c24e5" {
		t.Errorf("Envelope field = %q", byName["Envelope"])
	}
	if byName["Priority"] != "HIGH" {
		t.Errorf("Priority field = %q", byName["Priority"])
	}
	if byName["Attempts"] != "3" {
		t.Errorf("Attempts field = %q", byName["Attempts"])
	}
}

// --- FormatDegraded tests ---

func TestFormatDegraded(t *testing.T) {
	e := FormatDegraded(models.Delivery{
		EnvelopeID: "7f9c24e5",
		Recipient:  "birch",
		Channel:    "file_fallback",
		Success:    true,
		Degraded:   true,
		Attempts:   4,
	})
	if e.Kind != KindDegraded {
		t.Errorf("kind = %q, want %q", e.Kind, KindDegraded)
	}
	if e.Title != "Delivery to birch degraded to file drop" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Body, "4 attempts") {
		t.Errorf("body should name the attempt count, got %q", e.Body)
	}
	if e.Severity != "warning" {
		t.Errorf("severity = %q, want warning", e.Severity)
	}
}

// --- FormatEscalation tests ---

func TestFormatEscalation(t *testing.T) {
	e := FormatEscalation(models.Delivery{
		EnvelopeID: "7f9c24e5",
		Recipient:  "cedar",
		Channel:    "file_fallback",
		Success:    false,
		Attempts:   4,
		Error:      "actuate: inbox storage unavailable: mkdir /inbox/cedar: permission denied",
	})
	if e.Kind != KindEscalation {
		t.Errorf("kind = %q, want %q", e.Kind, KindEscalation)
	}
	if e.Title != "Inbox drop failed for cedar" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Body, "inbox storage unavailable") {
		t.Errorf("body should carry the storage error, got %q", e.Body)
	}
	if !strings.Contains(e.Body, "being lost") {
		t.Errorf("body should state the consequence, got %q", e.Body)
	}
	if e.Severity != "error" {
		t.Errorf("severity = %q, want error", e.Severity)
	}
}

// --- FormatIncident dispatch ---

func TestFormatIncident(t *testing.T) {
	tests := []struct {
		name string
		row  models.Delivery
		want Kind
	}{
		{"failed direct", models.Delivery{Recipient: "ash", Success: false, Channel: "direct"}, KindFailure},
		{"failed fallback", models.Delivery{Recipient: "ash", Success: false, Channel: "file_fallback"}, KindEscalation},
		{"degraded", models.Delivery{Recipient: "ash", Success: true, Degraded: true, Channel: "file_fallback"}, KindDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatIncident(tt.row).Kind; got != tt.want {
				t.Errorf("kind = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- FormatExpiries tests ---

func TestFormatExpiries(t *testing.T) {
	due := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	e := FormatExpiries([]tracker.Request{
		{ID: "req-1", Requester: "captain", Target: "ash", ExpiresAt: due},
		{ID: "req-2", Requester: "captain", Target: "birch", ExpiresAt: due.Add(time.Minute)},
	})
	if e.Kind != KindExpiry {
		t.Errorf("kind = %q, want %q", e.Kind, KindExpiry)
	}
	if e.Title != "2 coordination requests expired" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Body, "req-1: captain asked ash") {
		t.Errorf("body should list each request, got %q", e.Body)
	}
	if !strings.Contains(e.Body, "15:09:26") {
		t.Errorf("body should carry the deadline, got %q", e.Body)
	}
	if e.Severity != "warning" {
		t.Errorf("severity = %q, want warning", e.Severity)
	}

	byName := map[string]string{}
	for _, f := range e.Fields {
		byName[f.Name] = f.Value
	}
	if byName["Count"] != "2" {
		t.Errorf("Count field = %q", byName["Count"])
	}
	if byName["Oldest"] != "req-1" {
		t.Errorf("Oldest field = %q", byName["Oldest"])
	}
}

func TestFormatExpiries_SingularTitle(t *testing.T) {
	e := FormatExpiries([]tracker.Request{{ID: "req-1", Requester: "captain", Target: "ash"}})
	if e.Title != "1 coordination request expired" {
		t.Errorf("title = %q", e.Title)
	}
}

// --- FormatDigest tests ---

func TestFormatDigest_Clean(t *testing.T) {
	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	e := FormatDigest(journal.Stats{Total: 12, Direct: 11, Degraded: 1}, since)
	if e.Kind != KindDigest {
		t.Errorf("kind = %q, want %q", e.Kind, KindDigest)
	}
	if e.Title != "Switchboard digest" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Body, "12 total, 11 direct, 1 degraded, 0 failed") {
		t.Errorf("body = %q", e.Body)
	}
	if e.Severity != "info" {
		t.Errorf("severity = %q, want info for a clean window", e.Severity)
	}
}

func TestFormatDigest_WithFailures(t *testing.T) {
	e := FormatDigest(journal.Stats{Total: 5, Direct: 3, Failed: 2, Expired: 1}, time.Now())
	if e.Severity != "warning" {
		t.Errorf("severity = %q, want warning when failures are present", e.Severity)
	}
	if !strings.Contains(e.Body, "**Expired requests**: 1") {
		t.Errorf("body should mention expiries, got %q", e.Body)
	}
}

// --- FormatTest tests ---

func TestFormatTest(t *testing.T) {
	e := FormatTest()
	if e.Kind != KindTest {
		t.Errorf("kind = %q, want %q", e.Kind, KindTest)
	}
	if e.Title != "Switchboard notifier test" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Severity != "info" {
		t.Errorf("severity = %q, want info", e.Severity)
	}
}
