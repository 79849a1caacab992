package model

import "time"

type Vehicle struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      *int64    `gorm:"index"`
	UserType    string    `gorm:"size:32;not null"`
	Plate       string    `gorm:"size:16;not null;uniqueIndex:idx_vehicles_plate"`
	VehicleType string    `gorm:"size:32;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	// updated_at carries the remote lastUpdatedAt for conflict resolution;
	// gorm must not stamp it.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Vehicle) TableName() string { return "vehicles" }
