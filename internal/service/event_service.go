package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/model"
	"github.com/emivaldigle/plate-recon-rp/internal/mqtt"
	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
)

// flushBatchSize caps how many events ride in one broker message.
const flushBatchSize = 50

// Publisher is the outbound broker surface; publishes return only after the
// broker acknowledges delivery.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// EventAPI is the cloud fallback for event history lookups.
type EventAPI interface {
	GetLastEvent(ctx context.Context, entityID, plate string) (*remote.EventRecord, error)
}

type eventPayload struct {
	ID        string `json:"id"`
	PocID     string `json:"pocId"`
	Type      string `json:"type"`
	Plate     string `json:"plate"`
	CreatedAt string `json:"createdAt"`
}

// EventService is the at-least-once outbox: every decision is recorded
// locally first and delivered asynchronously, in acknowledged batches, until
// the cloud has them. Cloud consumers deduplicate by event id.
type EventService struct {
	repo     repo.RepositoryInterface
	pub      Publisher
	api      EventAPI
	entityID string
	pocID    string
	log      *zap.SugaredLogger
}

func NewEventService(r repo.RepositoryInterface, pub Publisher, api EventAPI, entityID, pocID string, logger *zap.SugaredLogger) *EventService {
	return &EventService{repo: r, pub: pub, api: api, entityID: entityID, pocID: pocID, log: logger}
}

// Record durably appends the event regardless of network state, then
// best-effort publishes it on the realtime topic. The synced flag is flipped
// only by the acknowledged batch flush.
func (s *EventService) Record(ctx context.Context, eventType, plate string) (*model.Event, error) {
	evt := &model.Event{
		ID:        uuid.NewString(),
		PocID:     s.pocID,
		Plate:     plate,
		Type:      eventType,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateEvent(ctx, evt); err != nil {
		return nil, err
	}
	s.log.Infof("event %s recorded: %s %s", evt.ID, eventType, plate)

	payload, _ := json.Marshal(toPayload(*evt))
	if err := s.pub.Publish(mqtt.EventCreateTopic(s.entityID), payload); err != nil {
		s.log.Warnf("realtime publish of event %s failed, outbox will deliver it: %v", evt.ID, err)
	}
	return evt, nil
}

// LastEventType returns the most recent event type for the plate, falling
// back to the cloud when nothing is known locally. Empty string means no
// history anywhere.
func (s *EventService) LastEventType(ctx context.Context, plate string) string {
	found, evt, err := s.repo.LastEventByPlate(ctx, plate)
	if err != nil {
		s.log.Errorf("event lookup failed for %s: %v", plate, err)
		return ""
	}
	if found {
		return evt.Type
	}
	s.log.Infof("no local event for plate %s, asking cloud", plate)
	rec, err := s.api.GetLastEvent(ctx, s.entityID, plate)
	if err != nil {
		s.log.Warnf("unable to obtain event remotely: %v", err)
		return ""
	}
	return rec.Type
}

// FlushPending delivers all unsynced events oldest-first in batches of
// flushBatchSize. Each acknowledged batch is marked synced in a single
// transaction; a failed publish leaves the batch unsynced for the next tick.
func (s *EventService) FlushPending(ctx context.Context) error {
	pending, err := s.repo.PendingEvents(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	s.log.Infof("flushing %d pending events", len(pending))

	for start := 0; start < len(pending); start += flushBatchSize {
		end := start + flushBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		payloads := make([]eventPayload, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, evt := range batch {
			payloads = append(payloads, toPayload(evt))
			ids = append(ids, evt.ID)
		}
		body, err := json.Marshal(payloads)
		if err != nil {
			return err
		}
		if err := s.pub.Publish(mqtt.PendingEventsTopic(s.entityID), body); err != nil {
			s.log.Warnf("batch publish failed, %d events stay pending: %v", len(pending)-start, err)
			return err
		}
		if err := s.repo.MarkEventsSynced(ctx, ids); err != nil {
			return err
		}
		s.log.Infof("marked %d events as synced", len(ids))
	}
	return nil
}

func toPayload(evt model.Event) eventPayload {
	return eventPayload{
		ID:        evt.ID,
		PocID:     evt.PocID,
		Type:      evt.Type,
		Plate:     evt.Plate,
		CreatedAt: evt.CreatedAt.Format("2006-01-02T15:04:05"),
	}
}
