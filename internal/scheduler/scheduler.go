package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/service"
)

// defaultIntervalMinutes backs a misconfigured or missing sync interval.
const defaultIntervalMinutes = 5

// Scheduler drives the periodic pull sync and outbox flush. It runs in its
// own goroutine and never blocks the detection path; each tick's failures
// are logged and retried on the next one.
type Scheduler struct {
	sync     *service.Synchronizer
	events   *service.EventService
	interval time.Duration
	log      *zap.SugaredLogger
}

// New builds a scheduler from the entity config's interval, falling back to
// a safe positive default when misconfigured.
func New(sync *service.Synchronizer, events *service.EventService, intervalMinutes int, logger *zap.SugaredLogger) *Scheduler {
	if intervalMinutes <= 0 {
		logger.Warnf("invalid sync interval %d, defaulting to %d minutes", intervalMinutes, defaultIntervalMinutes)
		intervalMinutes = defaultIntervalMinutes
	}
	return &Scheduler{
		sync:     sync,
		events:   events,
		interval: time.Duration(intervalMinutes) * time.Minute,
		log:      logger,
	}
}

// Interval reports the effective tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Infof("scheduler running every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one synchronization round: parking, vehicles, then outbox flush.
func (s *Scheduler) Tick(ctx context.Context) {
	s.log.Info("starting scheduled synchronization")
	if err := s.sync.SyncParking(ctx); err != nil {
		s.log.Warnf("parking sync: %v", err)
	}
	if err := s.sync.SyncVehicles(ctx); err != nil {
		s.log.Warnf("vehicle sync: %v", err)
	}
	if err := s.events.FlushPending(ctx); err != nil {
		s.log.Warnf("outbox flush: %v", err)
	}
}
