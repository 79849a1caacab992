package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/config"
)

// ErrUnavailable wraps any transport-level failure talking to the cloud.
// Callers degrade to local-only operation; the next scheduler tick retries.
var ErrUnavailable = errors.New("remote unavailable")

// Client consumes the authoritative cloud REST surface over basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *zap.SugaredLogger
}

// NewClient constructs the API client with a hard per-request timeout.
func NewClient(cfg config.RemoteConfig, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		log:      logger,
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)

	c.log.Debugf("GET %s", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: GET %s: status %d: %s", ErrUnavailable, path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: GET %s: decode: %v", ErrUnavailable, path, err)
	}
	return nil
}

// GetConfiguration fetches the per-entity configuration.
func (c *Client) GetConfiguration(ctx context.Context, entityID string) (*ConfigRecord, error) {
	var rec ConfigRecord
	if err := c.get(ctx, "/entities/configuration/"+url.PathEscape(entityID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindVehiclesByEntity fetches the full vehicle set for the entity.
func (c *Client) FindVehiclesByEntity(ctx context.Context, entityID string) ([]VehicleRecord, error) {
	var recs []VehicleRecord
	if err := c.get(ctx, "/vehicles/find-by-entity/"+url.PathEscape(entityID), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// FindParkingByEntity fetches the full parking set for the entity.
func (c *Client) FindParkingByEntity(ctx context.Context, entityID string) ([]ParkingRecord, error) {
	var recs []ParkingRecord
	if err := c.get(ctx, "/parking/find-by-entity/"+url.PathEscape(entityID), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// FindParkingByEntitySince fetches parking records modified after the given
// baseline timestamp.
func (c *Client) FindParkingByEntitySince(ctx context.Context, entityID string, since time.Time) ([]ParkingRecord, error) {
	path := fmt.Sprintf("/parking/find-by-entity/%s/date?date=%s",
		url.PathEscape(entityID), url.QueryEscape(since.Format(wireTimeLayout)))
	var recs []ParkingRecord
	if err := c.get(ctx, path, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// FindParkingByUser fetches the slots assigned to a user.
func (c *Client) FindParkingByUser(ctx context.Context, userID int64) ([]UserParkingRecord, error) {
	var recs []UserParkingRecord
	if err := c.get(ctx, fmt.Sprintf("/parking/find-by-user/%d", userID), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetAccess asks the cloud for an authorization verdict by plate.
func (c *Client) GetAccess(ctx context.Context, entityID, plate string) (*AccessVerdict, error) {
	path := fmt.Sprintf("/access/entity/%s/plate/%s", url.PathEscape(entityID), url.PathEscape(plate))
	var v AccessVerdict
	if err := c.get(ctx, path, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetLastEvent fetches the most recent cloud-side event for a plate.
func (c *Client) GetLastEvent(ctx context.Context, entityID, plate string) (*EventRecord, error) {
	path := fmt.Sprintf("/events/entity/%s/plate/%s", url.PathEscape(entityID), url.PathEscape(plate))
	var e EventRecord
	if err := c.get(ctx, path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
