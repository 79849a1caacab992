package model

import "time"

// ParkingSlot is one assignable parking position. available=false implies
// CurrentLicensePlate holds the occupying plate. SyncPending marks a local
// mutation not yet acknowledged by the remote push.
type ParkingSlot struct {
	ID                  string     `gorm:"primaryKey;size:36"`
	UserID              *int64     `gorm:"index"`
	Identifier          string     `gorm:"size:32;not null;uniqueIndex:idx_parking_identifier"`
	CurrentLicensePlate *string    `gorm:"size:16"`
	IsForVisit          bool       `gorm:"not null"`
	Available           bool       `gorm:"not null"`
	CreatedAt           time.Time  `gorm:"autoCreateTime"`
	ExpirationDate      *time.Time ``
	UpdatedAt           time.Time  `gorm:"not null;autoUpdateTime:false"`
	SyncPending         bool       `gorm:"not null;default:false"`
}

func (ParkingSlot) TableName() string { return "parking" }
