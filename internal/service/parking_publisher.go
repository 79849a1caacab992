package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/mqtt"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
)

type parkingPushPayload struct {
	EntityID            string  `json:"entityId"`
	Identifier          string  `json:"identifier"`
	CurrentLicensePlate *string `json:"currentLicensePlate"`
	Available           bool    `json:"available"`
	LastUpdatedAt       string  `json:"lastUpdatedAt"`
}

// ParkingPublisher records slot transitions locally and pushes them to the
// cloud-facing topic. The local write commits before any network I/O; the
// sync_pending flag is cleared only once the broker acknowledges.
type ParkingPublisher struct {
	repo     repo.RepositoryInterface
	pub      Publisher
	entityID string
	log      *zap.SugaredLogger
}

func NewParkingPublisher(r repo.RepositoryInterface, pub Publisher, entityID string, logger *zap.SugaredLogger) *ParkingPublisher {
	return &ParkingPublisher{repo: r, pub: pub, entityID: entityID, log: logger}
}

// PublishUpdate applies the local slot transition and pushes the new state.
// An unacknowledged push leaves the slot sync_pending; the periodic pull
// sync reconciles it later.
func (p *ParkingPublisher) PublishUpdate(ctx context.Context, identifier string, available bool, plate *string) error {
	now := time.Now()
	if err := p.repo.SetParkingState(ctx, identifier, available, plate, now); err != nil {
		return err
	}

	body, _ := json.Marshal(parkingPushPayload{
		EntityID:            p.entityID,
		Identifier:          identifier,
		CurrentLicensePlate: plate,
		Available:           available,
		LastUpdatedAt:       now.Format("2006-01-02T15:04:05"),
	})
	if err := p.pub.Publish(mqtt.ParkingPushTopic(p.entityID), body); err != nil {
		p.log.Warnf("parking push for %s not acknowledged, left pending: %v", identifier, err)
		return nil
	}
	if err := p.repo.ClearParkingSyncPending(ctx, identifier); err != nil {
		return err
	}
	p.log.Infof("parking %s pushed, available=%t", identifier, available)
	return nil
}
