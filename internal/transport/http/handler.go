package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emivaldigle/plate-recon-rp/internal/gate"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
	"github.com/emivaldigle/plate-recon-rp/internal/service"
)

// Handlers exposes the edge daemon's local diagnostics surface and the
// detection ingress: the external ALPR pipeline posts one reading per
// recognized plate.
type Handlers struct {
	Repo       repo.RepositoryInterface
	Sync       *service.Synchronizer
	Access     *service.AccessService
	Events     *service.EventService
	Controller *gate.Controller
}

func RegisterHandlers(r *gin.Engine, h Handlers) {
	r.GET("/healthz", healthHandler(h))

	v1 := r.Group("/v1")
	{
		v1.POST("/detections", detectionHandler(h))
		v1.GET("/decide/:plate", decideHandler(h))
		v1.GET("/outbox/pending", pendingHandler(h))
		v1.POST("/sync", syncHandler(h))
	}
}

func healthHandler(h Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := h.Repo.CountPendingEvents(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func detectionHandler(h Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var reading gate.Reading
		if err := c.ShouldBindJSON(&reading); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if reading.Plate == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "plate is required"})
			return
		}
		decision, err := h.Controller.HandleReading(c, reading)
		if err != nil {
			switch {
			case errors.Is(err, gate.ErrLowConfidence):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			case errors.Is(err, gate.ErrDebounced):
				c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, decision)
	}
}

// decideHandler answers what the gate would do for a plate right now. It
// records no event, transitions no slot and drives no signals.
func decideHandler(h Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		plate := c.Param("plate")
		lastType := h.Events.LastEventType(c, plate)
		authorized, identifier := h.Access.Decide(c, plate, lastType)
		c.JSON(http.StatusOK, gin.H{
			"authorized":    authorized,
			"identifier":    identifier,
			"lastEventType": lastType,
		})
	}
}

func pendingHandler(h Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.Repo.CountPendingEvents(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pending": n})
	}
}

func syncHandler(h Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Sync.SyncParking(c); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if err := h.Sync.SyncVehicles(c); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if err := h.Events.FlushPending(c); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "synced"})
	}
}
