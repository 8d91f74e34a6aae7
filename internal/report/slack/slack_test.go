package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stationhouse/switchboard/internal/report"
)

// --- Mock Slack client ---

type mockClient struct {
	mu      sync.Mutex
	posted  []postedMessage
	postErr error // every post fails with this when set
	limited int   // rate-limit the first N posts, then succeed
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func (m *mockClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return "", "", m.postErr
	}
	if m.limited > 0 {
		m.limited--
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

func newTestNotifier(t *testing.T) (*Notifier, *mockClient) {
	t.Helper()
	client := &mockClient{}
	n, err := New(Opts{ChannelID: "C1", Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n, client
}

// --- constructor tests ---

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Opts{ChannelID: "C1"})
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	if got := err.Error(); got != "slack: bot token is required" {
		t.Errorf("error = %q", got)
	}
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(Opts{Token: "xoxb-test"})
	if err == nil {
		t.Fatal("expected error for missing channel")
	}
	if got := err.Error(); got != "slack: channel is required" {
		t.Errorf("error = %q", got)
	}
}

func TestNew_WithMockClient(t *testing.T) {
	n, err := New(Opts{ChannelID: "C1", Client: &mockClient{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n == nil {
		t.Fatal("notifier is nil")
	}
}

// --- Notify tests ---

func TestNotify_PostsToChannel(t *testing.T) {
	n, client := newTestNotifier(t)

	err := n.Notify(context.Background(), report.Event{
		Kind:     report.KindFailure,
		Title:    "Delivery to ash failed",
		Body:     "actuate: target unresponsive",
		Severity: "error",
		Color:    report.ColorError,
		Fields: []report.Field{
			{Name: "Recipient", Value: "ash", Short: true},
		},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if client.postedCount() != 1 {
		t.Fatalf("posted = %d, want 1", client.postedCount())
	}
	if got := client.lastPosted().channelID; got != "C1" {
		t.Errorf("channel = %q, want C1", got)
	}
}

func TestNotify_PostError(t *testing.T) {
	n, client := newTestNotifier(t)
	client.postErr = errors.New("channel_not_found")

	err := n.Notify(context.Background(), report.FormatTest())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "slack: post message:") {
		t.Errorf("error = %v", err)
	}
}

func TestNotify_RetriesOnRateLimit(t *testing.T) {
	n, client := newTestNotifier(t)
	client.limited = 2

	if err := n.Notify(context.Background(), report.FormatTest()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if client.postedCount() != 1 {
		t.Errorf("posted = %d, want 1 after retries", client.postedCount())
	}
}

// --- eventToAttachment tests ---

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(report.Event{
		Title:    "Delivery to ash degraded to file drop",
		Body:     "Direct injection gave up after 4 attempts",
		Color:    report.ColorWarning,
		Severity: "warning",
		Fields: []report.Field{
			{Name: "Recipient", Value: "ash", Short: true},
			{Name: "Attempts", Value: "4", Short: true},
		},
	})
	if att.Title != "Delivery to ash degraded to file drop" {
		t.Errorf("title = %q", att.Title)
	}
	if att.Fallback != att.Title {
		t.Errorf("fallback = %q, want title", att.Fallback)
	}
	if att.Color != report.ColorWarning {
		t.Errorf("color = %q", att.Color)
	}
	if len(att.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(att.Fields))
	}
	if att.Fields[0].Title != "Recipient" || att.Fields[0].Value != "ash" || !att.Fields[0].Short {
		t.Errorf("fields[0] = %+v", att.Fields[0])
	}
}

// --- retryOnRateLimit tests ---

func TestRetryOnRateLimit_Success(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryOnRateLimit_NonRateLimitError(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return fmt.Errorf("some other error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("should not retry non-rate-limit errors, calls = %d", calls)
	}
}

func TestRetryOnRateLimit_RetriesAndSucceeds(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOnRateLimit_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// maxRetries+1 total calls (initial + retries).
	if calls != maxRetries+1 {
		t.Errorf("expected %d calls, got %d", maxRetries+1, calls)
	}
}

func TestRetryOnRateLimit_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	calls := 0
	err := retryOnRateLimit(ctx, func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Second}
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before context cancel, got %d", calls)
	}
}
