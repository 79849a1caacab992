package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/emivaldigle/plate-recon-rp/internal/logger"
	"github.com/emivaldigle/plate-recon-rp/internal/model"
	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
)

const testEntity = "1"

func newTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.ConfigEntry{}, &model.Vehicle{}, &model.ParkingSlot{}, &model.Event{}))
	log, _ := logger.NewLogger(false)
	return repo.NewRepository(db, log)
}

// fakeAPI implements RemoteAPI, AccessAPI and EventAPI for tests.
type fakeAPI struct {
	cfg          *remote.ConfigRecord
	vehicles     []remote.VehicleRecord
	parking      []remote.ParkingRecord
	parkingSince []remote.ParkingRecord
	userParking  []remote.UserParkingRecord
	verdict      *remote.AccessVerdict
	lastEvent    *remote.EventRecord
	err          error
}

func (f *fakeAPI) GetConfiguration(context.Context, string) (*remote.ConfigRecord, error) {
	return f.cfg, f.err
}

func (f *fakeAPI) FindVehiclesByEntity(context.Context, string) ([]remote.VehicleRecord, error) {
	return f.vehicles, f.err
}

func (f *fakeAPI) FindParkingByEntity(context.Context, string) ([]remote.ParkingRecord, error) {
	return f.parking, f.err
}

func (f *fakeAPI) FindParkingByEntitySince(context.Context, string, time.Time) ([]remote.ParkingRecord, error) {
	return f.parkingSince, f.err
}

func (f *fakeAPI) FindParkingByUser(context.Context, int64) ([]remote.UserParkingRecord, error) {
	return f.userParking, f.err
}

func (f *fakeAPI) GetAccess(context.Context, string, string) (*remote.AccessVerdict, error) {
	return f.verdict, f.err
}

func (f *fakeAPI) GetLastEvent(context.Context, string, string) (*remote.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.lastEvent == nil {
		return nil, fmt.Errorf("%w: no event", remote.ErrUnavailable)
	}
	return f.lastEvent, nil
}

type published struct {
	topic   string
	payload []byte
}

// fakeBroker records acknowledged publishes and can simulate broker outages.
type fakeBroker struct {
	mu        sync.Mutex
	published []published
	fail      bool
}

func (b *fakeBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return fmt.Errorf("broker unreachable")
	}
	b.published = append(b.published, published{topic: topic, payload: payload})
	return nil
}

func (b *fakeBroker) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.published {
		if p.topic == topic {
			n++
		}
	}
	return n
}

func wire(t time.Time) remote.WireTime { return remote.WireTime{Time: t} }

func configEntry(intervalMinutes int) *model.ConfigEntry {
	return &model.ConfigEntry{
		ID:                  "c1",
		EntityID:            testEntity,
		SyncIntervalMinutes: intervalMinutes,
		ParkingHoursAllowed: 4,
		VisitSizeLimit:      2,
		ParkingSizeLimit:    10,
		LastSync:            time.Now(),
		Active:              true,
	}
}

func seedVehicle(t *testing.T, r *repo.Repository, id, plate string, userID int64, updatedAt time.Time) {
	t.Helper()
	assert.NoError(t, r.CreateVehicles(context.Background(), []model.Vehicle{{
		ID: id, Plate: plate, VehicleType: "CAR", UserID: &userID, UserType: "RESIDENT", UpdatedAt: updatedAt,
	}}))
}

func seedParking(t *testing.T, r *repo.Repository, id, identifier string, userID int64, available bool, updatedAt time.Time) {
	t.Helper()
	assert.NoError(t, r.CreateParking(context.Background(), []model.ParkingSlot{{
		ID: id, Identifier: identifier, UserID: &userID, Available: available, UpdatedAt: updatedAt,
	}}))
}
