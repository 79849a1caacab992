package model

import "time"

// Event types recorded by the access pipeline.
const (
	EventAccess       = "ACCESS"
	EventExit         = "EXIT"
	EventDeniedAccess = "DENIED_ACCESS"
	EventDeniedExit   = "DENIED_EXIT"
)

// Event is an append-only audit/outbox record. Rows are never updated after
// creation except for the Synced flag, which transitions false->true once
// the broker acknowledges delivery.
type Event struct {
	ID        string    `gorm:"primaryKey;size:36"`
	PocID     string    `gorm:"size:36;not null"`
	Plate     string    `gorm:"size:16;not null;index:idx_events_plate"`
	Type      string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Synced    bool      `gorm:"not null;default:false"`
}

func (Event) TableName() string { return "events" }
