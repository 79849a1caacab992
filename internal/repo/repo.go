package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emivaldigle/plate-recon-rp/internal/model"
)

// ErrConflict is returned when a write is rejected by a uniqueness
// constraint. The transaction is rolled back and prior state is intact.
var ErrConflict = errors.New("constraint violation")

// RepositoryInterface restricts Repo methods (unit test mocks).
type RepositoryInterface interface {
	FindConfig(ctx context.Context, entityID string) (bool, *model.ConfigEntry, error)
	CreateConfig(ctx context.Context, c *model.ConfigEntry) error
	UpdateConfig(ctx context.Context, c *model.ConfigEntry) error

	FindVehicleByPlate(ctx context.Context, plate string) (bool, *model.Vehicle, error)
	LatestVehicleUpdate(ctx context.Context) (bool, time.Time, error)
	CountVehicles(ctx context.Context) (int64, error)
	CreateVehicles(ctx context.Context, vs []model.Vehicle) error
	UpsertVehicleIfNewer(ctx context.Context, v model.Vehicle) (bool, error)

	FindParkingByIdentifier(ctx context.Context, identifier string) (bool, *model.ParkingSlot, error)
	FindParkingByUser(ctx context.Context, userID int64) (bool, *model.ParkingSlot, error)
	LatestParkingUpdate(ctx context.Context) (bool, time.Time, error)
	CountParking(ctx context.Context) (int64, error)
	CreateParking(ctx context.Context, slots []model.ParkingSlot) error
	UpsertParkingIfNewer(ctx context.Context, p model.ParkingSlot) (bool, error)
	ApplyParkingPush(ctx context.Context, identifier string, available bool, plate *string, updatedAt time.Time) (bool, error)
	SetParkingState(ctx context.Context, identifier string, available bool, plate *string, updatedAt time.Time) error
	ClearParkingSyncPending(ctx context.Context, identifier string) error

	CreateEvent(ctx context.Context, e *model.Event) error
	LastEventByPlate(ctx context.Context, plate string) (bool, *model.Event, error)
	PendingEvents(ctx context.Context) ([]model.Event, error)
	CountPendingEvents(ctx context.Context) (int64, error)
	MarkEventsSynced(ctx context.Context, ids []string) error
}

// Repository implements RepositoryInterface over the embedded store.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

func persistErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// FindConfig looks up the singleton config row for the entity.
func (r *Repository) FindConfig(ctx context.Context, entityID string) (bool, *model.ConfigEntry, error) {
	var c model.ConfigEntry
	err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &c, nil
}

// CreateConfig inserts the config row.
func (r *Repository) CreateConfig(ctx context.Context, c *model.ConfigEntry) error {
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(c).Error
	}))
}

// UpdateConfig updates all mutable fields, identity excluded.
func (r *Repository) UpdateConfig(ctx context.Context, c *model.ConfigEntry) error {
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.ConfigEntry{}).
			Where("entity_id = ?", c.EntityID).
			Updates(map[string]interface{}{
				"sync_interval_minutes": c.SyncIntervalMinutes,
				"parking_hours_allowed": c.ParkingHoursAllowed,
				"visit_size_limit":      c.VisitSizeLimit,
				"parking_size_limit":    c.ParkingSizeLimit,
				"last_sync":             c.LastSync,
				"active":                c.Active,
			}).Error
	}))
}

// FindVehicleByPlate looks up a vehicle by plate.
func (r *Repository) FindVehicleByPlate(ctx context.Context, plate string) (bool, *model.Vehicle, error) {
	var v model.Vehicle
	err := r.db.WithContext(ctx).Where("plate = ?", plate).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &v, nil
}

// LatestVehicleUpdate returns the greatest updated_at across vehicles, used
// as the delta-sync baseline.
func (r *Repository) LatestVehicleUpdate(ctx context.Context) (bool, time.Time, error) {
	var v model.Vehicle
	err := r.db.WithContext(ctx).Order("updated_at DESC").First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, v.UpdatedAt, nil
}

// CountVehicles counts rows.
func (r *Repository) CountVehicles(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Vehicle{}).Count(&n).Error
	return n, err
}

// CreateVehicles bulk-inserts in one transaction (initial load).
func (r *Repository) CreateVehicles(ctx context.Context, vs []model.Vehicle) error {
	if len(vs) == 0 {
		return nil
	}
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&vs).Error
	}))
}

// UpsertVehicleIfNewer inserts an unknown vehicle or replaces the local row
// when the remote timestamp is strictly greater. Returns whether a write
// happened.
func (r *Repository) UpsertVehicleIfNewer(ctx context.Context, v model.Vehicle) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Vehicle
		err := tx.Where("id = ?", v.ID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
			applied = true
			return nil
		}
		if err != nil {
			return err
		}
		if !v.UpdatedAt.After(cur.UpdatedAt) {
			return nil
		}
		if err := tx.Model(&model.Vehicle{}).Where("id = ?", v.ID).
			Updates(map[string]interface{}{
				"plate":        v.Plate,
				"vehicle_type": v.VehicleType,
				"user_id":      v.UserID,
				"user_type":    v.UserType,
				"updated_at":   v.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, persistErr(err)
}

// FindParkingByIdentifier looks up a slot by its unique identifier.
func (r *Repository) FindParkingByIdentifier(ctx context.Context, identifier string) (bool, *model.ParkingSlot, error) {
	var p model.ParkingSlot
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &p, nil
}

// FindParkingByUser returns the user's slot, preferring an available one so
// the decision engine sees the occupied slot only when nothing is free.
func (r *Repository) FindParkingByUser(ctx context.Context, userID int64) (bool, *model.ParkingSlot, error) {
	var p model.ParkingSlot
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("available DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &p, nil
}

// LatestParkingUpdate returns the greatest updated_at across slots.
func (r *Repository) LatestParkingUpdate(ctx context.Context) (bool, time.Time, error) {
	var p model.ParkingSlot
	err := r.db.WithContext(ctx).Order("updated_at DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, p.UpdatedAt, nil
}

// CountParking counts rows.
func (r *Repository) CountParking(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ParkingSlot{}).Count(&n).Error
	return n, err
}

// CreateParking bulk-inserts in one transaction (initial load).
func (r *Repository) CreateParking(ctx context.Context, slots []model.ParkingSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&slots).Error
	}))
}

// UpsertParkingIfNewer applies a pulled remote record by id under the
// last-write-wins rule: insert when absent, replace when strictly newer.
func (r *Repository) UpsertParkingIfNewer(ctx context.Context, p model.ParkingSlot) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.ParkingSlot
		err := tx.Where("id = ?", p.ID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			applied = true
			return nil
		}
		if err != nil {
			return err
		}
		if !p.UpdatedAt.After(cur.UpdatedAt) {
			return nil
		}
		if err := tx.Model(&model.ParkingSlot{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"user_id":               p.UserID,
				"identifier":            p.Identifier,
				"current_license_plate": p.CurrentLicensePlate,
				"is_for_visit":          p.IsForVisit,
				"available":             p.Available,
				"expiration_date":       p.ExpirationDate,
				"updated_at":            p.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, persistErr(err)
}

// ApplyParkingPush applies an inbound broker update by identifier, only if
// strictly newer than the local row. Returns whether it was applied.
func (r *Repository) ApplyParkingPush(ctx context.Context, identifier string, available bool, plate *string, updatedAt time.Time) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.ParkingSlot
		if err := tx.Where("identifier = ?", identifier).First(&cur).Error; err != nil {
			return err
		}
		if !updatedAt.After(cur.UpdatedAt) {
			return nil
		}
		if err := tx.Model(&model.ParkingSlot{}).Where("identifier = ?", identifier).
			Updates(map[string]interface{}{
				"available":             available,
				"current_license_plate": plate,
				"updated_at":            updatedAt,
			}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, persistErr(err)
}

// SetParkingState records a local slot transition (grant/exit) and flags it
// sync-pending until the broker acknowledges the push.
func (r *Repository) SetParkingState(ctx context.Context, identifier string, available bool, plate *string, updatedAt time.Time) error {
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.ParkingSlot{}).Where("identifier = ?", identifier).
			Updates(map[string]interface{}{
				"available":             available,
				"current_license_plate": plate,
				"updated_at":            updatedAt,
				"sync_pending":          true,
			}).Error
	}))
}

// ClearParkingSyncPending marks the slot's last local mutation as delivered.
func (r *Repository) ClearParkingSyncPending(ctx context.Context, identifier string) error {
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.ParkingSlot{}).Where("identifier = ?", identifier).
			Update("sync_pending", false).Error
	}))
}

// CreateEvent appends an audit/outbox record.
func (r *Repository) CreateEvent(ctx context.Context, e *model.Event) error {
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(e).Error
	}))
}

// LastEventByPlate returns the most recent event for the plate.
func (r *Repository) LastEventByPlate(ctx context.Context, plate string) (bool, *model.Event, error) {
	var e model.Event
	err := r.db.WithContext(ctx).Where("plate = ?", plate).Order("created_at DESC").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &e, nil
}

// PendingEvents pulls undelivered events oldest-first.
func (r *Repository) PendingEvents(ctx context.Context) ([]model.Event, error) {
	var evts []model.Event
	err := r.db.WithContext(ctx).Where("synced = ?", false).Order("created_at ASC").Find(&evts).Error
	return evts, err
}

// CountPendingEvents counts undelivered events.
func (r *Repository) CountPendingEvents(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Event{}).Where("synced = ?", false).Count(&n).Error
	return n, err
}

// MarkEventsSynced flips the synced flag for a delivered batch in a single
// transaction.
func (r *Repository) MarkEventsSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return persistErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.Event{}).Where("id IN ?", ids).
			Update("synced", true).Error
	}))
}
