package models

import "time"

// Delivery is one recorded delivery outcome for an (envelope, recipient)
// pair. Rows are append-only; the dispatcher writes one per dispatch.
type Delivery struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	EnvelopeID string `gorm:"size:64;not null;index"`
	Sender     string `gorm:"size:64"`
	Recipient  string `gorm:"size:64;not null;index"`
	Priority   string `gorm:"size:8;default:NORMAL"`
	FrameKind  string `gorm:"size:24"`
	Tags       string `gorm:"size:256"`
	Channel    string `gorm:"size:16"`
	Success    bool   `gorm:"index"`
	Degraded   bool
	Attempts   int
	Error      string `gorm:"size:512"`
	LatencyMs  int
	CreatedAt  time.Time `gorm:"index"`
}
