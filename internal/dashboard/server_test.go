package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/registry"
	"github.com/stationhouse/switchboard/internal/tracker"
)

// --- constructor ---

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestStartOpts_ZeroValue(t *testing.T) {
	opts := StartOpts{}
	if opts.DB != nil || opts.Registry != nil || opts.Tracker != nil || opts.Port != 0 || opts.Out != nil {
		t.Error("zero-value StartOpts should have nil/zero fields")
	}
}

// --- routes ---

// findFreePort finds an available port for testing.
func findFreePort() int {
	// Use a high port range unlikely to conflict.
	return 18080 + int(time.Now().UnixNano()%1000)
}

// setupTestRouter runs a dashboard server with no DB attached. Routes
// that do not query anything still answer; the rest degrade to empty
// payloads.
func setupTestRouter(t *testing.T) (string, func()) {
	t.Helper()

	port := findFreePort()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- startTestServer(ctx, port)
	}()

	// Wait for server to be ready.
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	return baseURL, func() {
		cancel()
		<-errCh
	}
}

// startTestServer runs the router without going through Start, which
// insists on a DB connection.
func startTestServer(ctx context.Context, port int) error {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, StartOpts{})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func TestHealthz_Returns200(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("body = %s, want status ok", body)
	}
}

func TestAgents_EmptyWithoutRegistry(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/agents")
	if err != nil {
		t.Fatalf("GET /api/agents: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		Agents []AgentRow `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Agents == nil || len(payload.Agents) != 0 {
		t.Errorf("agents = %v, want empty list", payload.Agents)
	}
}

func TestDeliveries_EmptyWithoutDB(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/deliveries")
	if err != nil {
		t.Fatalf("GET /api/deliveries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"deliveries":[]`) {
		t.Errorf("body = %s, want empty deliveries", body)
	}
}

func TestPending_EmptyWithoutDB(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/pending")
	if err != nil {
		t.Fatalf("GET /api/pending: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"pending":[]`) {
		t.Errorf("body = %s, want empty pending", body)
	}
}

func TestStats_ZeroWithoutDB(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		Stats struct {
			Total int64
		} `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Stats.Total != 0 {
		t.Errorf("total = %d, want 0", payload.Stats.Total)
	}
}

func TestSSEEndpoint_Returns200(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/events")
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	// The nil-DB handler returns after the connected event.
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "event: connected") {
		t.Errorf("body = %q, want connected event", body)
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	baseURL, cleanup := setupTestRouter(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// --- queries ---

const fleetYAML = `
monitors:
  - name: primary
    width: 2560
    height: 1440
  - name: side
    origin_x: 2560
    width: 1920
    height: 1080

agents:
  - id: agent-ash
    role: build engineer
    active: true
    coordinates:
      primary: {x: 120, y: 840}
  - id: agent-birch
    role: reviewer
    active: true
    coordinates:
      primary: {x: 1400, y: 840}
      side: {x: 3000, y: 500}
`

func TestAgentList(t *testing.T) {
	reg, err := registry.Parse([]byte(fleetYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rows := AgentList(reg)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].ID != "agent-ash" || rows[0].Role != "build engineer" || !rows[0].Active {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if got := rows[1].Monitors; len(got) != 2 || got[0] != "primary" || got[1] != "side" {
		t.Errorf("monitors = %v, want sorted [primary side]", got)
	}
}

func TestAgentList_NilRegistry(t *testing.T) {
	rows := AgentList(nil)
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil list", rows)
	}
}

func TestDeliveryStatus(t *testing.T) {
	tests := []struct {
		name string
		d    models.Delivery
		want string
	}{
		{"direct success", models.Delivery{Success: true}, "ok"},
		{"degraded", models.Delivery{Success: true, Degraded: true}, "degraded"},
		{"failed", models.Delivery{Success: false}, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deliveryStatus(tt.d); got != tt.want {
				t.Errorf("deliveryStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPendingRequests_LiveTracker(t *testing.T) {
	trk := tracker.New(tracker.Opts{})
	trk.Track("req-1", "captain", "ash", time.Hour)
	trk.Track("req-2", "captain", "birch", time.Hour)
	trk.Resolve("req-2")

	rows := PendingRequests(nil, trk)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].RequestID != "req-1" || rows[0].Target != "ash" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[0].Remaining == "" || rows[0].Remaining == "expired" {
		t.Errorf("remaining = %q, want a positive countdown", rows[0].Remaining)
	}
}

func TestPendingRequests_NoSources(t *testing.T) {
	rows := PendingRequests(nil, nil)
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil list", rows)
	}
}

// --- formatting ---

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		name string
		when time.Time
		want string
	}{
		{"zero", time.Time{}, "—"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3h ago"},
		{"days", time.Now().Add(-48 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.when); got != tt.want {
				t.Errorf("TimeAgo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{26 * time.Hour, "1d 2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
