package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/emivaldigle/plate-recon-rp/internal/logger"
	"github.com/emivaldigle/plate-recon-rp/internal/model"
	"github.com/emivaldigle/plate-recon-rp/internal/remote"
	"github.com/emivaldigle/plate-recon-rp/internal/repo"
	"github.com/emivaldigle/plate-recon-rp/internal/service"
)

type downAPI struct{}

func (downAPI) GetConfiguration(context.Context, string) (*remote.ConfigRecord, error) {
	return nil, remote.ErrUnavailable
}

func (downAPI) FindVehiclesByEntity(context.Context, string) ([]remote.VehicleRecord, error) {
	return nil, remote.ErrUnavailable
}

func (downAPI) FindParkingByEntity(context.Context, string) ([]remote.ParkingRecord, error) {
	return nil, remote.ErrUnavailable
}

func (downAPI) FindParkingByEntitySince(context.Context, string, time.Time) ([]remote.ParkingRecord, error) {
	return nil, remote.ErrUnavailable
}

func (downAPI) GetLastEvent(context.Context, string, string) (*remote.EventRecord, error) {
	return nil, remote.ErrUnavailable
}

type memBroker struct {
	mu sync.Mutex
	n  int
}

func (b *memBroker) Publish(string, []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	return nil
}

func newFixture(t *testing.T) (*service.Synchronizer, *service.EventService, *repo.Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Vehicle{}, &model.ParkingSlot{}, &model.Event{}))
	log, _ := logger.NewLogger(false)
	r := repo.NewRepository(db, log)
	syncer := service.NewSynchronizer(r, downAPI{}, "1", log)
	events := service.NewEventService(r, &memBroker{}, downAPI{}, "1", "poc-1", log)
	return syncer, events, r
}

func TestNew_InvalidIntervalFallsBack(t *testing.T) {
	syncer, events, _ := newFixture(t)
	log, _ := logger.NewLogger(false)

	assert.Equal(t, 5*time.Minute, New(syncer, events, 0, log).Interval())
	assert.Equal(t, 5*time.Minute, New(syncer, events, -3, log).Interval())
	assert.Equal(t, 15*time.Minute, New(syncer, events, 15, log).Interval())
}

func TestTick_FlushesOutboxDespiteRemoteDown(t *testing.T) {
	// A dead cloud API must not stop the broker-side outbox flush.
	syncer, events, r := newFixture(t)
	ctx := context.Background()
	assert.NoError(t, r.CreateEvent(ctx, &model.Event{
		ID: uuid.NewString(), PocID: "poc-1", Plate: "ABC123", Type: model.EventAccess, CreatedAt: time.Now(),
	}))

	log, _ := logger.NewLogger(false)
	New(syncer, events, 1, log).Tick(ctx)

	n, err := r.CountPendingEvents(ctx)
	assert.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	syncer, events, _ := newFixture(t)
	log, _ := logger.NewLogger(false)
	s := New(syncer, events, 1, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
