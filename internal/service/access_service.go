package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/model"
	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
)

// AccessAPI is the slice of the cloud surface the decision engine consumes
// on local misses.
type AccessAPI interface {
	GetAccess(ctx context.Context, entityID, plate string) (*remote.AccessVerdict, error)
	FindParkingByUser(ctx context.Context, userID int64) ([]remote.UserParkingRecord, error)
}

// AccessService answers authorization requests. It consults the local store
// first and the cloud only on a local miss; every failure path resolves to
// deny (fail closed) so the gate never opens on ambiguity.
type AccessService struct {
	repo     repo.RepositoryInterface
	api      AccessAPI
	entityID string
	log      *zap.SugaredLogger
}

func NewAccessService(r repo.RepositoryInterface, api AccessAPI, entityID string, logger *zap.SugaredLogger) *AccessService {
	return &AccessService{repo: r, api: api, entityID: entityID, log: logger}
}

// Decide returns whether the plate is authorized and, when known, the
// parking slot identifier backing the decision.
func (s *AccessService) Decide(ctx context.Context, plate, lastEventType string) (bool, string) {
	s.log.Infof("requesting authorization for plate %s", plate)

	found, vehicle, err := s.repo.FindVehicleByPlate(ctx, plate)
	if err != nil {
		s.log.Errorf("vehicle lookup failed for %s: %v", plate, err)
		return false, ""
	}
	if !found {
		return s.decideRemotely(ctx, plate)
	}
	if vehicle.UserID == nil {
		s.log.Warnf("vehicle %s has no assigned user", plate)
		return false, ""
	}

	haveSlot, slot, err := s.repo.FindParkingByUser(ctx, *vehicle.UserID)
	if err != nil {
		s.log.Errorf("parking lookup failed for user %d: %v", *vehicle.UserID, err)
		return false, ""
	}
	if !haveSlot {
		return s.decideFromRemoteParking(ctx, *vehicle.UserID)
	}

	authorized := slot.Available
	if !authorized && lastEventType == model.EventAccess {
		// Vehicle is recorded as inside: always allowed to exit, however
		// the slot availability bookkeeping looks.
		authorized = true
	}
	s.log.Infof("authorization for %s resolved locally: %t (slot %s)", plate, authorized, slot.Identifier)
	return authorized, slot.Identifier
}

func (s *AccessService) decideRemotely(ctx context.Context, plate string) (bool, string) {
	s.log.Infof("vehicle %s not found locally, asking cloud", plate)
	verdict, err := s.api.GetAccess(ctx, s.entityID, plate)
	if err != nil {
		s.log.Warnf("unable to check authorization remotely: %v", err)
		return false, ""
	}
	return verdict.Authorized, verdict.Identifier
}

func (s *AccessService) decideFromRemoteParking(ctx context.Context, userID int64) (bool, string) {
	s.log.Warnf("no available parking locally for user %d, checking remotely", userID)
	slots, err := s.api.FindParkingByUser(ctx, userID)
	if err != nil {
		s.log.Warnf("unable to check remote parking: %v", err)
		return false, ""
	}
	for _, slot := range slots {
		if slot.Available {
			return true, slot.ParkingIdentifier
		}
	}
	if len(slots) > 0 {
		return false, slots[0].ParkingIdentifier
	}
	return false, ""
}
