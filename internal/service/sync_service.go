package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/model"
	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
)

// RemoteAPI is the slice of the cloud surface the synchronizer consumes.
type RemoteAPI interface {
	GetConfiguration(ctx context.Context, entityID string) (*remote.ConfigRecord, error)
	FindVehiclesByEntity(ctx context.Context, entityID string) ([]remote.VehicleRecord, error)
	FindParkingByEntity(ctx context.Context, entityID string) ([]remote.ParkingRecord, error)
	FindParkingByEntitySince(ctx context.Context, entityID string, since time.Time) ([]remote.ParkingRecord, error)
}

// Synchronizer keeps vehicles, parking slots and the entity configuration
// eventually consistent with the cloud. Every method leaves the store
// untouched on any remote failure; the scheduler's next tick is the retry.
type Synchronizer struct {
	repo     repo.RepositoryInterface
	api      RemoteAPI
	entityID string
	log      *zap.SugaredLogger
}

func NewSynchronizer(r repo.RepositoryInterface, api RemoteAPI, entityID string, logger *zap.SugaredLogger) *Synchronizer {
	return &Synchronizer{repo: r, api: api, entityID: entityID, log: logger}
}

// Initialize runs the boot sequence: config first (it supplies the scheduler
// interval), then the initial loads for vehicles and parking. Returns the
// config entry to drive the scheduler, local if the remote is down.
func (s *Synchronizer) Initialize(ctx context.Context) (*model.ConfigEntry, error) {
	s.log.Infof("starting sync for entity %s", s.entityID)
	cfg, err := s.SyncConfig(ctx)
	if err != nil {
		s.log.Warnf("config sync failed, using local snapshot: %v", err)
	}
	if err := s.SyncVehicles(ctx); err != nil {
		s.log.Warnf("vehicle sync failed: %v", err)
	}
	if err := s.SyncParking(ctx); err != nil {
		s.log.Warnf("parking sync failed: %v", err)
	}
	if cfg == nil {
		found, local, err := s.repo.FindConfig(ctx, s.entityID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("no configuration available for entity %s", s.entityID)
		}
		cfg = local
	}
	return cfg, nil
}

// SyncConfig fetches the entity configuration and inserts or updates the
// local singleton row.
func (s *Synchronizer) SyncConfig(ctx context.Context) (*model.ConfigEntry, error) {
	rec, err := s.api.GetConfiguration(ctx, s.entityID)
	if err != nil {
		return nil, err
	}
	entry := model.ConfigEntry{
		ID:                  rec.ID,
		EntityID:            s.entityID,
		SyncIntervalMinutes: rec.SyncIntervalMinutes,
		ParkingHoursAllowed: rec.ParkingHoursAllowed,
		VisitSizeLimit:      rec.VisitSizeLimit,
		ParkingSizeLimit:    rec.ParkingSizeLimit,
		LastSync:            time.Now(),
		Active:              rec.Active,
	}
	found, _, err := s.repo.FindConfig(ctx, s.entityID)
	if err != nil {
		return nil, err
	}
	if !found {
		s.log.Info("configuration not found locally, creating one")
		if err := s.repo.CreateConfig(ctx, &entry); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.UpdateConfig(ctx, &entry); err != nil {
			return nil, err
		}
		s.log.Info("configuration updated")
	}
	return &entry, nil
}

// SyncVehicles pulls the entity's vehicles. An empty local table takes the
// initial-load path (bulk insert); otherwise each remote record is applied
// under last-write-wins by lastUpdatedAt.
func (s *Synchronizer) SyncVehicles(ctx context.Context) error {
	n, err := s.repo.CountVehicles(ctx)
	if err != nil {
		return err
	}
	recs, err := s.api.FindVehiclesByEntity(ctx, s.entityID)
	if err != nil {
		return err
	}
	if n == 0 {
		s.log.Infof("no vehicles locally, loading all %d", len(recs))
		vs := make([]model.Vehicle, 0, len(recs))
		for _, rec := range recs {
			vs = append(vs, vehicleFromRecord(rec))
		}
		return s.repo.CreateVehicles(ctx, vs)
	}
	updated := 0
	for _, rec := range recs {
		applied, err := s.repo.UpsertVehicleIfNewer(ctx, vehicleFromRecord(rec))
		if err != nil {
			return err
		}
		if applied {
			updated++
		}
	}
	if updated == 0 {
		s.log.Info("vehicles up to date")
	} else {
		s.log.Infof("updated %d of %d vehicles", updated, len(recs))
	}
	return nil
}

// SyncParking pulls parking slots modified since the latest locally-known
// updated_at. An empty table triggers the full initial load instead.
func (s *Synchronizer) SyncParking(ctx context.Context) error {
	hasBaseline, baseline, err := s.repo.LatestParkingUpdate(ctx)
	if err != nil {
		return err
	}
	if !hasBaseline {
		recs, err := s.api.FindParkingByEntity(ctx, s.entityID)
		if err != nil {
			return err
		}
		s.log.Infof("no parking locally, loading all %d", len(recs))
		slots := make([]model.ParkingSlot, 0, len(recs))
		for _, rec := range recs {
			slots = append(slots, parkingFromRecord(rec))
		}
		return s.repo.CreateParking(ctx, slots)
	}

	recs, err := s.api.FindParkingByEntitySince(ctx, s.entityID, baseline)
	if err != nil {
		return err
	}
	updated := 0
	for _, rec := range recs {
		applied, err := s.repo.UpsertParkingIfNewer(ctx, parkingFromRecord(rec))
		if err != nil {
			return err
		}
		if applied {
			updated++
		}
	}
	if updated == 0 {
		s.log.Info("parking up to date")
	} else {
		s.log.Infof("updated %d of %d parking slots", updated, len(recs))
	}
	return nil
}

func vehicleFromRecord(rec remote.VehicleRecord) model.Vehicle {
	v := model.Vehicle{
		ID:          rec.ID,
		Plate:       rec.Plate,
		VehicleType: rec.VehicleType,
		CreatedAt:   rec.CreatedAt.Time,
		UpdatedAt:   rec.LastUpdatedAt.Time,
	}
	if rec.User != nil {
		id := rec.User.ID
		v.UserID = &id
		v.UserType = rec.User.Type
	}
	return v
}

func parkingFromRecord(rec remote.ParkingRecord) model.ParkingSlot {
	p := model.ParkingSlot{
		ID:                  rec.ID,
		Identifier:          rec.Identifier,
		CurrentLicensePlate: rec.CurrentLicensePlate,
		IsForVisit:          rec.IsForVisit,
		Available:           rec.Available,
		CreatedAt:           rec.CreatedAt.Time,
		UpdatedAt:           rec.LastUpdatedAt.Time,
	}
	if rec.User != nil {
		id := rec.User.ID
		p.UserID = &id
	}
	if rec.ExpirationDate != nil {
		t := rec.ExpirationDate.Time
		p.ExpirationDate = &t
	}
	return p
}
