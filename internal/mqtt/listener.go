package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
)

// ErrBadMessage marks a malformed inbound payload; it is logged and dropped.
var ErrBadMessage = errors.New("malformed broker message")

// Subscriber is the inbound broker surface the listener needs.
type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

type parkingUpdate struct {
	Identifier          string           `json:"identifier"`
	CurrentLicensePlate *string          `json:"currentLicensePlate"`
	Available           bool             `json:"available"`
	LastUpdatedAt       *remote.WireTime `json:"lastUpdatedAt"`
}

// Listener applies externally-initiated parking updates to the local store.
// It runs on the broker client's delivery goroutine, concurrently with the
// scheduler and the detection path, and writes through the same
// transactional path as every other mutator.
type Listener struct {
	repo     repo.RepositoryInterface
	entityID string
	log      *zap.SugaredLogger
}

func NewListener(r repo.RepositoryInterface, entityID string, logger *zap.SugaredLogger) *Listener {
	return &Listener{repo: r, entityID: entityID, log: logger}
}

// Start subscribes to the per-entity parking topic.
func (l *Listener) Start(sub Subscriber) error {
	return sub.Subscribe(ParkingInboundTopic(l.entityID), l.handle)
}

func (l *Listener) handle(topic string, payload []byte) {
	if err := l.apply(context.Background(), payload); err != nil {
		l.log.Warnf("drop message on %s: %v", topic, err)
	}
}

func (l *Listener) apply(ctx context.Context, payload []byte) error {
	var upd parkingUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if upd.Identifier == "" || upd.LastUpdatedAt == nil || upd.LastUpdatedAt.IsZero() {
		return fmt.Errorf("%w: missing identifier or lastUpdatedAt", ErrBadMessage)
	}

	found, cur, err := l.repo.FindParkingByIdentifier(ctx, upd.Identifier)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", upd.Identifier, err)
	}
	if !found {
		return fmt.Errorf("%w: unknown parking identifier %s", ErrBadMessage, upd.Identifier)
	}

	applied, err := l.repo.ApplyParkingPush(ctx, upd.Identifier, upd.Available, upd.CurrentLicensePlate, upd.LastUpdatedAt.Time)
	if err != nil {
		return fmt.Errorf("apply %s: %w", upd.Identifier, err)
	}
	if !applied {
		l.log.Infof("parking %s up to date (local %s >= inbound %s)",
			upd.Identifier, cur.UpdatedAt.Format("2006-01-02T15:04:05"), upd.LastUpdatedAt.Format("2006-01-02T15:04:05"))
		return nil
	}
	l.log.Infof("parking %s updated from broker, available=%t", upd.Identifier, upd.Available)
	return nil
}
