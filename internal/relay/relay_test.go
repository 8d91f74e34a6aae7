package relay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stationhouse/switchboard/internal/envelope"
	"github.com/stationhouse/switchboard/internal/tracker"
)

func pendingTracker(t *testing.T, requestID string) *tracker.Tracker {
	t.Helper()
	trk := tracker.New(tracker.Opts{})
	trk.Track(requestID, "captain", "ash", time.Hour)
	return trk
}

func writeReplyArtifact(t *testing.T, dir, name, inReplyTo string) string {
	t.Helper()
	env, err := envelope.Build("ash", []string{"captain"}, "done, all green", envelope.BuildOpts{
		InReplyTo: inReplyTo,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(envelope.Artifact(env, "captain")), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// --- constructor ---

func TestNew_RequiresTracker(t *testing.T) {
	_, err := New(Opts{Dirs: []string{"/tmp/inbox"}})
	if err == nil {
		t.Fatal("expected error for missing tracker")
	}
	if got := err.Error(); got != "relay: tracker is required" {
		t.Errorf("error = %q", got)
	}
}

func TestNew_RequiresDirs(t *testing.T) {
	_, err := New(Opts{Tracker: tracker.New(tracker.Opts{})})
	if err == nil {
		t.Fatal("expected error for missing dirs")
	}
	if got := err.Error(); got != "relay: at least one watch directory is required" {
		t.Errorf("error = %q", got)
	}
}

// --- Scan ---

func TestScan_ResolvesPendingRequest(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")
	path := writeReplyArtifact(t, dir, "reply.msg", "msg-1")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resolutions, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resolutions) != 1 {
		t.Fatalf("resolutions = %d, want 1", len(resolutions))
	}
	res := resolutions[0]
	if res.RequestID != "msg-1" {
		t.Errorf("RequestID = %q, want msg-1", res.RequestID)
	}
	if res.From != "ash" {
		t.Errorf("From = %q, want ash", res.From)
	}
	if res.Path != path {
		t.Errorf("Path = %q, want %q", res.Path, path)
	}

	req, ok := trk.Get("msg-1")
	if !ok || req.Status != tracker.StatusResolved {
		t.Errorf("request = %+v, want resolved", req)
	}
}

func TestScan_IgnoresArtifactsWithoutReplyHeader(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")

	env, err := envelope.Build("ash", []string{"captain"}, "unrelated note", envelope.BuildOpts{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "note.msg"), []byte(envelope.Artifact(env, "captain")), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolutions, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resolutions) != 0 {
		t.Errorf("resolutions = %v, want none", resolutions)
	}
	if req, _ := trk.Get("msg-1"); req.Status != tracker.StatusPending {
		t.Errorf("request status = %q, want still pending", req.Status)
	}
}

func TestScan_IgnoresRepliesToUnknownRequests(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")
	writeReplyArtifact(t, dir, "stray.msg", "msg-unknown")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolutions, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resolutions) != 0 {
		t.Errorf("resolutions = %v, want none", resolutions)
	}
}

func TestScan_SecondScanIsNoop(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")
	writeReplyArtifact(t, dir, "reply.msg", "msg-1")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if first, _ := r.Scan(); len(first) != 1 {
		t.Fatalf("first scan = %d resolutions, want 1", len(first))
	}
	second, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second scan = %v, want none (request already settled)", second)
	}
}

func TestScan_MissingDirectorySkipped(t *testing.T) {
	trk := pendingTracker(t, "msg-1")
	r, err := New(Opts{Tracker: trk, Dirs: []string{filepath.Join(t.TempDir(), "absent")}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolutions, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resolutions) != 0 {
		t.Errorf("resolutions = %v, want none", resolutions)
	}
}

// --- process ---

func TestProcess_SkipsNonArtifactExtensions(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")
	path := writeReplyArtifact(t, dir, "reply.txt", "msg-1")

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.process(path); ok {
		t.Error("process accepted a non-.msg file")
	}
}

func TestProcess_SkipsUnparseableFile(t *testing.T) {
	dir := t.TempDir()
	trk := pendingTracker(t, "msg-1")
	path := filepath.Join(dir, "garbage.msg")
	if err := os.WriteFile(path, []byte("not an artifact\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := New(Opts{Tracker: trk, Dirs: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.process(path); ok {
		t.Error("process accepted an unparseable file")
	}
}
