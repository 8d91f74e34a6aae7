package models

import "time"

// CoordinationEvent records one lifecycle transition of a tracked
// request: tracked, resolved, or expired.
type CoordinationEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RequestID string `gorm:"size:64;not null;index"`
	Requester string `gorm:"size:64"`
	Target    string `gorm:"size:64;index"`
	Kind      string `gorm:"size:16;index"`
	CreatedAt time.Time
}

// CoordinationEvent kinds.
const (
	EventTracked  = "tracked"
	EventResolved = "resolved"
	EventExpired  = "expired"
)
