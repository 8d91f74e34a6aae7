//go:build integration

package relay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stationhouse/switchboard/internal/db"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "relay.db")
	gdb, err := db.Connect(db.Config{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

func receive(t *testing.T, ch <-chan Resolution) Resolution {
	t.Helper()
	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before a resolution arrived")
		}
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a resolution")
	}
	return Resolution{}
}

func TestRun_EmitsStartupResolutions(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")
	writeReplyArtifact(t, dir, "reply.msg", "msg-1")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := receive(t, ch)
	if res.RequestID != "msg-1" {
		t.Errorf("RequestID = %q, want msg-1", res.RequestID)
	}
	if req, _ := trk.Get("msg-1"); req.Status != tracker.StatusResolved {
		t.Errorf("request status = %q, want resolved", req.Status)
	}
}

func TestRun_DetectsDroppedReplies(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-2")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The watch is established before Run returns, so a drop now is seen.
	writeReplyArtifact(t, dir, "reply.msg", "msg-2")

	res := receive(t, ch)
	if res.RequestID != "msg-2" {
		t.Errorf("RequestID = %q, want msg-2", res.RequestID)
	}
	if res.From != "ash" {
		t.Errorf("From = %q, want ash", res.From)
	}
}

func TestRun_CreatesWatchDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox", "captain")
	trk := pendingTracker(t, "msg-1")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("watch directory was not created: %v", err)
	}
}

func TestRun_ChannelClosesOnCancel(t *testing.T) {
	trk := pendingTracker(t, "msg-1")
	r, err := New(Opts{Tracker: trk, Dirs: []string{t.TempDir()}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received a resolution from an empty directory")
		}
	case <-time.After(2 * time.Second):
		t.Error("channel did not close after cancel")
	}
}

func TestScan_RecordsResolutionEvent(t *testing.T) {
	dir := t.TempDir()
	gdb := openTestDB(t)
	trk := pendingTracker(t, "msg-1")
	writeReplyArtifact(t, dir, "reply.msg", "msg-1")

	r, err := New(Opts{Tracker: trk, DB: gdb, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var events []models.CoordinationEvent
	if err := gdb.Where("request_id = ?", "msg-1").Find(&events).Error; err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != models.EventResolved {
		t.Errorf("Kind = %q, want %q", ev.Kind, models.EventResolved)
	}
	if ev.Requester != "captain" || ev.Target != "ash" {
		t.Errorf("Requester/Target = %q/%q, want captain/ash", ev.Requester, ev.Target)
	}
}
