package remote

import (
	"fmt"
	"strings"
	"time"
)

const wireTimeLayout = "2006-01-02T15:04:05"

// WireTime tolerates the timestamp shapes the cloud emits: RFC3339,
// ISO-8601 without zone, and with or without fractional seconds.
type WireTime struct {
	time.Time
}

func (t *WireTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		wireTimeLayout,
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
	} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(wireTimeLayout) + `"`), nil
}

// UserRef is the nested user object on vehicle/parking records.
type UserRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type ConfigRecord struct {
	ID                  string `json:"id"`
	SyncIntervalMinutes int    `json:"syncIntervalMinutes"`
	ParkingHoursAllowed int    `json:"parkingHoursAllowed"`
	VisitSizeLimit      int    `json:"visitSizeLimit"`
	ParkingSizeLimit    int    `json:"parkingSizeLimit"`
	Active              bool   `json:"active"`
}

type VehicleRecord struct {
	ID            string   `json:"id"`
	Plate         string   `json:"plate"`
	VehicleType   string   `json:"vehicleType"`
	User          *UserRef `json:"user"`
	CreatedAt     WireTime `json:"createdAt"`
	LastUpdatedAt WireTime `json:"lastUpdatedAt"`
}

type ParkingRecord struct {
	ID                  string    `json:"id"`
	User                *UserRef  `json:"user"`
	Identifier          string    `json:"identifier"`
	CurrentLicensePlate *string   `json:"currentLicensePlate"`
	IsForVisit          bool      `json:"isForVisit"`
	Available           bool      `json:"available"`
	CreatedAt           WireTime  `json:"createdAt"`
	ExpirationDate      *WireTime `json:"expirationDate"`
	LastUpdatedAt       WireTime  `json:"lastUpdatedAt"`
}

// UserParkingRecord is the shape of /parking/find-by-user responses.
type UserParkingRecord struct {
	ParkingIdentifier string `json:"parkingIdentifier"`
	Available         bool   `json:"available"`
}

type AccessVerdict struct {
	Authorized bool   `json:"authorized"`
	Identifier string `json:"identifier"`
}

type EventRecord struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Plate string `json:"plate"`
}
