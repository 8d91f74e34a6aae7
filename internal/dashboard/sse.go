package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stationhouse/switchboard/internal/models"
	"gorm.io/gorm"
)

// incidentEvent holds data for an incident SSE event.
type incidentEvent struct {
	ID         uint   `json:"id"`
	EnvelopeID string `json:"envelope_id"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Count      int64  `json:"count"`
}

// handleSSE creates an SSE handler that polls the journal for new
// incidents (failed or degraded deliveries).
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Send connected event.
		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// If no DB, just send connected and return — tests use nil DB.
		if db == nil {
			return
		}

		// Start past existing rows so only NEW incidents alert.
		var lastSeenID uint
		var latest models.Delivery
		if err := incidents(db).Order("id DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var fresh []models.Delivery
				incidents(db).Where("id > ?", lastSeenID).
					Order("id ASC").
					Find(&fresh)

				if len(fresh) == 0 {
					continue
				}
				lastSeenID = fresh[len(fresh)-1].ID

				// Incident pressure over the last day.
				var count int64
				incidents(db).Where("created_at >= ?", time.Now().Add(-24*time.Hour)).
					Count(&count)

				newest := fresh[len(fresh)-1]
				evt := incidentEvent{
					ID:         newest.ID,
					EnvelopeID: newest.EnvelopeID,
					Recipient:  newest.Recipient,
					Status:     deliveryStatus(newest),
					Error:      newest.Error,
					Count:      count,
				}
				writeSSE(c.Writer, "incident", evt)
				c.Writer.Flush()
			}
		}
	}
}

// incidents scopes a Delivery query to failed or degraded rows.
func incidents(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Delivery{}).
		Where("success = ? OR degraded = ?", false, true)
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
