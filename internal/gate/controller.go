package gate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emivaldigle/plate-recon-rp/internal/config"
	"github.com/emivaldigle/plate-recon-rp/internal/model"
	"github.com/emivaldigle/plate-recon-rp/internal/service"
)

// ErrLowConfidence rejects readings below either configured threshold.
var ErrLowConfidence = errors.New("reading below confidence threshold")

// ErrDebounced drops repeated readings of a plate within the debounce window
// (the camera reports the same plate many frames in a row).
var ErrDebounced = errors.New("duplicate reading debounced")

// Reading is one recognized plate from the external detection pipeline.
type Reading struct {
	Plate               string  `json:"plate"`
	DetectionConfidence float64 `json:"detectionConfidence"`
	OCRConfidence       float64 `json:"ocrConfidence"`
}

// Decision is the outcome handed back to the detection pipeline.
type Decision struct {
	Authorized bool   `json:"authorized"`
	Identifier string `json:"identifier,omitempty"`
	EventType  string `json:"eventType"`
}

// The debounce map holds one limiter per plate seen recently. Plates idle
// past plateIdleTTL are swept once the map reaches plateSweepThreshold, so
// months of traffic cannot grow it without bound.
const (
	plateIdleTTL        = 10 * time.Minute
	plateSweepThreshold = 512
)

type plateLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Controller glues one plate reading to a gate decision: threshold gate,
// debounce, authorize, record the event, push the slot transition, drive the
// signals. Decisions run one at a time.
type Controller struct {
	access  *service.AccessService
	events  *service.EventService
	parking *service.ParkingPublisher
	signals Signaler
	cfg     config.DetectionConfig
	log     *zap.SugaredLogger

	mu       sync.Mutex
	limiters map[string]*plateLimiter
}

func NewController(access *service.AccessService, events *service.EventService, parking *service.ParkingPublisher, signals Signaler, cfg config.DetectionConfig, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		access:   access,
		events:   events,
		parking:  parking,
		signals:  signals,
		cfg:      cfg,
		log:      logger,
		limiters: make(map[string]*plateLimiter),
	}
}

func (c *Controller) allow(plate string) bool {
	if c.cfg.PlateDebounce <= 0 {
		return true
	}
	now := time.Now()
	c.mu.Lock()
	e, ok := c.limiters[plate]
	if !ok {
		if len(c.limiters) >= plateSweepThreshold {
			c.sweepLimiters(now)
		}
		e = &plateLimiter{lim: rate.NewLimiter(rate.Every(c.cfg.PlateDebounce), 1)}
		c.limiters[plate] = e
	}
	e.lastSeen = now
	c.mu.Unlock()
	return e.lim.Allow()
}

// sweepLimiters drops plates not seen within the idle window. Caller holds mu.
func (c *Controller) sweepLimiters(now time.Time) {
	for plate, e := range c.limiters {
		if now.Sub(e.lastSeen) > plateIdleTTL {
			delete(c.limiters, plate)
		}
	}
}

// HandleReading runs the full decision path for one reading.
func (c *Controller) HandleReading(ctx context.Context, r Reading) (*Decision, error) {
	if r.DetectionConfidence <= c.cfg.DetectionConfidence || r.OCRConfidence <= c.cfg.OCRConfidence {
		c.log.Debugf("reading %s below thresholds (det=%.2f ocr=%.2f)", r.Plate, r.DetectionConfidence, r.OCRConfidence)
		return nil, ErrLowConfidence
	}
	if !c.allow(r.Plate) {
		return nil, ErrDebounced
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.signals.Assert(SignalProcessing)
	defer c.signals.Deassert(SignalProcessing)

	lastType := c.events.LastEventType(ctx, r.Plate)
	authorized, identifier := c.access.Decide(ctx, r.Plate, lastType)
	eventType := deriveEventType(authorized, lastType)

	if _, err := c.events.Record(ctx, eventType, r.Plate); err != nil {
		c.log.Errorf("record event for %s: %v", r.Plate, err)
	}

	if authorized && identifier != "" {
		if err := c.applySlotTransition(ctx, identifier, eventType, r.Plate); err != nil {
			c.log.Errorf("slot transition for %s: %v", identifier, err)
		}
	}

	if authorized {
		c.signals.Assert(SignalAccessGranted)
	} else {
		c.signals.Assert(SignalAccessDenied)
	}

	c.log.Infof("plate %s: %s (slot %q)", r.Plate, eventType, identifier)
	return &Decision{Authorized: authorized, Identifier: identifier, EventType: eventType}, nil
}

func (c *Controller) applySlotTransition(ctx context.Context, identifier, eventType, plate string) error {
	switch eventType {
	case model.EventAccess:
		return c.parking.PublishUpdate(ctx, identifier, false, &plate)
	case model.EventExit:
		return c.parking.PublishUpdate(ctx, identifier, true, nil)
	}
	return nil
}

// deriveEventType maps the decision and the plate's last event onto the
// audit event taxonomy: a granted vehicle already inside is exiting.
func deriveEventType(authorized bool, lastEventType string) string {
	inside := lastEventType == model.EventAccess
	switch {
	case authorized && inside:
		return model.EventExit
	case authorized:
		return model.EventAccess
	case inside:
		return model.EventDeniedExit
	default:
		return model.EventDeniedAccess
	}
}
