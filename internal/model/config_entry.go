package model

import "time"

// ConfigEntry is the singleton per-entity configuration pulled from the
// remote system; SyncIntervalMinutes drives the scheduler.
type ConfigEntry struct {
	ID                  string    `gorm:"primaryKey;size:36"`
	EntityID            string    `gorm:"size:36;not null;uniqueIndex:idx_config_entity"`
	SyncIntervalMinutes int       `gorm:"not null"`
	ParkingHoursAllowed int       `gorm:"not null"`
	VisitSizeLimit      int       `gorm:"not null"`
	ParkingSizeLimit    int       `gorm:"not null"`
	LastSync            time.Time `gorm:"not null"`
	Active              bool      `gorm:"not null;default:true"`
}

func (ConfigEntry) TableName() string { return "config" }
