// Package journal persists delivery outcomes and coordination lifecycle
// events to the database.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/stationhouse/switchboard/internal/actuate"
	"github.com/stationhouse/switchboard/internal/envelope"
	"github.com/stationhouse/switchboard/internal/models"
	"gorm.io/gorm"
)

// Record appends one delivery row for an (envelope, recipient) outcome.
func Record(db *gorm.DB, env *envelope.Envelope, recipient string, res actuate.Result, latency time.Duration) (*models.Delivery, error) {
	if env == nil {
		return nil, fmt.Errorf("journal: envelope is required")
	}
	if recipient == "" {
		return nil, fmt.Errorf("journal: recipient is required")
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	row := models.Delivery{
		EnvelopeID: env.ID,
		Sender:     env.Sender,
		Recipient:  recipient,
		Priority:   env.Priority.String(),
		FrameKind:  string(env.Frame),
		Tags:       strings.Join(env.Tags, ","),
		Channel:    string(res.Channel),
		Success:    res.Success,
		Degraded:   res.Success && res.Channel == actuate.ChannelFile,
		Attempts:   res.Attempts,
		Error:      errText,
		LatencyMs:  int(latency.Milliseconds()),
		CreatedAt:  time.Now(),
	}

	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("journal: record delivery %s -> %s: %w", env.ID, recipient, err)
	}
	return &row, nil
}

// RecordUnstall appends a delivery row for a payload-free unstall poke.
// Unstalls carry no envelope; their rows are identified by the frame
// kind "unstall" and an empty envelope id.
func RecordUnstall(db *gorm.DB, recipient string, res actuate.Result, latency time.Duration) (*models.Delivery, error) {
	if recipient == "" {
		return nil, fmt.Errorf("journal: recipient is required")
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	row := models.Delivery{
		Recipient: recipient,
		FrameKind: "unstall",
		Channel:   string(res.Channel),
		Success:   res.Success,
		Attempts:  res.Attempts,
		Error:     errText,
		LatencyMs: int(latency.Milliseconds()),
		CreatedAt: time.Now(),
	}

	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("journal: record unstall for %s: %w", recipient, err)
	}
	return &row, nil
}

// RecordEvent appends one coordination lifecycle event. Kind is one of
// the models.Event* constants.
func RecordEvent(db *gorm.DB, kind, requestID, requester, target string) (*models.CoordinationEvent, error) {
	if kind == "" {
		return nil, fmt.Errorf("journal: kind is required")
	}
	if requestID == "" {
		return nil, fmt.Errorf("journal: requestID is required")
	}

	row := models.CoordinationEvent{
		RequestID: requestID,
		Requester: requester,
		Target:    target,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("journal: record event %s for %s: %w", kind, requestID, err)
	}
	return &row, nil
}

// Recent returns the newest delivery rows, most recent first. A limit
// of zero or less defaults to 20.
func Recent(db *gorm.DB, limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []models.Delivery
	if err := db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: recent deliveries: %w", err)
	}
	return rows, nil
}

// ForRecipient returns the newest delivery rows addressed to one
// recipient, most recent first.
func ForRecipient(db *gorm.DB, recipient string, limit int) ([]models.Delivery, error) {
	if recipient == "" {
		return nil, fmt.Errorf("journal: recipient is required")
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []models.Delivery
	if err := db.Where("recipient = ?", recipient).
		Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: deliveries for %s: %w", recipient, err)
	}
	return rows, nil
}

// Failures returns failed deliveries recorded at or after since, oldest
// first.
func Failures(db *gorm.DB, since time.Time) ([]models.Delivery, error) {
	var rows []models.Delivery
	if err := db.Where("success = ? AND created_at >= ?", false, since).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: failures since %s: %w", since.Format(time.RFC3339), err)
	}
	return rows, nil
}

// Incidents returns deliveries recorded at or after since that warrant
// attention: outright failures and degraded successes that landed on
// the file fallback. Oldest first.
func Incidents(db *gorm.DB, since time.Time) ([]models.Delivery, error) {
	var rows []models.Delivery
	if err := db.Where("created_at >= ? AND (success = ? OR degraded = ?)", since, false, true).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: incidents since %s: %w", since.Format(time.RFC3339), err)
	}
	return rows, nil
}

// Stats summarizes delivery outcomes since a point in time.
type Stats struct {
	Total    int64
	Direct   int64 // delivered on the first channel
	Degraded int64 // delivered via file fallback
	Failed   int64
	Expired  int64 // coordination requests that timed out
}

// Summarize counts delivery outcomes and expired coordination requests
// recorded at or after since.
func Summarize(db *gorm.DB, since time.Time) (Stats, error) {
	var s Stats

	if err := db.Model(&models.Delivery{}).
		Where("created_at >= ?", since).
		Count(&s.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("journal: count deliveries: %w", err)
	}
	if err := db.Model(&models.Delivery{}).
		Where("created_at >= ? AND success = ? AND degraded = ?", since, true, false).
		Count(&s.Direct).Error; err != nil {
		return Stats{}, fmt.Errorf("journal: count direct: %w", err)
	}
	if err := db.Model(&models.Delivery{}).
		Where("created_at >= ? AND degraded = ?", since, true).
		Count(&s.Degraded).Error; err != nil {
		return Stats{}, fmt.Errorf("journal: count degraded: %w", err)
	}
	if err := db.Model(&models.Delivery{}).
		Where("created_at >= ? AND success = ?", since, false).
		Count(&s.Failed).Error; err != nil {
		return Stats{}, fmt.Errorf("journal: count failed: %w", err)
	}

	if err := db.Model(&models.CoordinationEvent{}).
		Where("kind = ? AND created_at >= ?", models.EventExpired, since).
		Count(&s.Expired).Error; err != nil {
		return Stats{}, fmt.Errorf("journal: count expired: %w", err)
	}

	return s, nil
}
