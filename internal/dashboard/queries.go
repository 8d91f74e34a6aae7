package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/models"
	"github.com/stationhouse/switchboard/internal/registry"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

// AgentRow holds registry endpoint data for display.
type AgentRow struct {
	ID       string   `json:"id"`
	Role     string   `json:"role,omitempty"`
	Active   bool     `json:"active"`
	Monitors []string `json:"monitors"`
}

// AgentList returns every registry endpoint, active or not.
func AgentList(reg *registry.Table) []AgentRow {
	rows := []AgentRow{}
	if reg == nil {
		return rows
	}
	for _, ep := range reg.Agents {
		monitors := make([]string, 0, len(ep.Coordinates))
		for name := range ep.Coordinates {
			monitors = append(monitors, name)
		}
		sort.Strings(monitors)
		rows = append(rows, AgentRow{
			ID:       ep.ID,
			Role:     ep.Role,
			Active:   ep.Active,
			Monitors: monitors,
		})
	}
	return rows
}

// DeliveryRow holds a journal row shaped for display.
type DeliveryRow struct {
	ID         uint      `json:"id"`
	EnvelopeID string    `json:"envelope_id"`
	Sender     string    `json:"sender,omitempty"`
	Recipient  string    `json:"recipient"`
	Priority   string    `json:"priority"`
	Channel    string    `json:"channel"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	LatencyMs  int       `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
	Age        string    `json:"age"`
}

// DeliveryList returns recent deliveries, newest first. With failuresOnly
// it restricts to failed rows from the last 24 hours.
func DeliveryList(db *gorm.DB, limit int, failuresOnly bool) ([]DeliveryRow, error) {
	rows := []DeliveryRow{}
	if db == nil {
		return rows, nil
	}

	var (
		deliveries []models.Delivery
		err        error
	)
	if failuresOnly {
		deliveries, err = journal.Failures(db, time.Now().Add(-24*time.Hour))
	} else {
		deliveries, err = journal.Recent(db, limit)
	}
	if err != nil {
		return nil, err
	}

	for _, d := range deliveries {
		rows = append(rows, DeliveryRow{
			ID:         d.ID,
			EnvelopeID: d.EnvelopeID,
			Sender:     d.Sender,
			Recipient:  d.Recipient,
			Priority:   d.Priority,
			Channel:    d.Channel,
			Status:     deliveryStatus(d),
			Attempts:   d.Attempts,
			Error:      d.Error,
			LatencyMs:  d.LatencyMs,
			CreatedAt:  d.CreatedAt,
			Age:        TimeAgo(d.CreatedAt),
		})
	}
	return rows, nil
}

// deliveryStatus collapses the success/degraded pair into one label.
func deliveryStatus(d models.Delivery) string {
	switch {
	case d.Success && d.Degraded:
		return "degraded"
	case d.Success:
		return "ok"
	default:
		return "failed"
	}
}

// PendingRow holds an unresolved coordination request for display.
type PendingRow struct {
	RequestID string    `json:"request_id"`
	Requester string    `json:"requester"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Remaining string    `json:"remaining,omitempty"`
}

// PendingRequests returns requests still waiting on a reply. A live
// tracker is authoritative; without one the journal is correlated
// instead (tracked events with no settling event), which loses the
// deadline but survives process boundaries.
func PendingRequests(db *gorm.DB, trk *tracker.Tracker) []PendingRow {
	rows := []PendingRow{}

	if trk != nil {
		for _, req := range trk.Pending() {
			remaining := "expired"
			if until := time.Until(req.ExpiresAt); until > 0 {
				remaining = formatDuration(until)
			}
			rows = append(rows, PendingRow{
				RequestID: req.ID,
				Requester: req.Requester,
				Target:    req.Target,
				CreatedAt: req.CreatedAt,
				ExpiresAt: req.ExpiresAt,
				Remaining: remaining,
			})
		}
		return rows
	}

	if db == nil {
		return rows
	}
	settled := db.Model(&models.CoordinationEvent{}).
		Select("request_id").
		Where("kind IN ?", []string{models.EventResolved, models.EventExpired})
	var events []models.CoordinationEvent
	db.Where("kind = ? AND request_id NOT IN (?)", models.EventTracked, settled).
		Order("created_at ASC").
		Find(&events)
	for _, ev := range events {
		rows = append(rows, PendingRow{
			RequestID: ev.RequestID,
			Requester: ev.Requester,
			Target:    ev.Target,
			CreatedAt: ev.CreatedAt,
		})
	}
	return rows
}

// TimeAgo formats a timestamp as a coarse relative age like "5m ago".
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}

// formatDuration formats a duration as a human-readable string like "2h 15m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		days := h / 24
		h = h % 24
		return fmt.Sprintf("%dd %dh", days, h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
