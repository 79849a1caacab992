package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/emivaldigle/plate-recon-rp/internal/logger"
	"github.com/emivaldigle/plate-recon-rp/internal/model"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.ConfigEntry{}, &model.Vehicle{}, &model.ParkingSlot{}, &model.Event{}))
	log, _ := logger.NewLogger(false)
	return NewRepository(db, log)
}

func strptr(s string) *string { return &s }

func TestUniquePlateRejected(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	uid := int64(1)

	assert.NoError(t, r.CreateVehicles(ctx, []model.Vehicle{
		{ID: "v1", Plate: "ABC123", VehicleType: "CAR", UserID: &uid, UserType: "RESIDENT", UpdatedAt: time.Now()},
	}))
	err := r.CreateVehicles(ctx, []model.Vehicle{
		{ID: "v2", Plate: "ABC123", VehicleType: "CAR", UserID: &uid, UserType: "RESIDENT", UpdatedAt: time.Now()},
	})
	assert.ErrorIs(t, err, ErrConflict)

	// The rejected transaction left prior state intact.
	n, _ := r.CountVehicles(ctx)
	assert.EqualValues(t, 1, n)
}

func TestApplyParkingPush_LastWriteWins(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)
	uid := int64(7)

	assert.NoError(t, r.CreateParking(ctx, []model.ParkingSlot{
		{ID: "p1", Identifier: "A1", UserID: &uid, Available: true, UpdatedAt: t0},
	}))

	// Inbound older than local: no change.
	applied, err := r.ApplyParkingPush(ctx, "A1", false, strptr("ABC123"), t0.Add(-time.Second))
	assert.NoError(t, err)
	assert.False(t, applied)
	_, slot, _ := r.FindParkingByIdentifier(ctx, "A1")
	assert.True(t, slot.Available)

	// Inbound equal to local: still no change (strictly newer required).
	applied, err = r.ApplyParkingPush(ctx, "A1", false, strptr("ABC123"), t0)
	assert.NoError(t, err)
	assert.False(t, applied)

	// Inbound strictly newer: fields replaced, updated_at advances.
	applied, err = r.ApplyParkingPush(ctx, "A1", false, strptr("ABC123"), t0.Add(time.Second))
	assert.NoError(t, err)
	assert.True(t, applied)
	_, slot, _ = r.FindParkingByIdentifier(ctx, "A1")
	assert.False(t, slot.Available)
	assert.Equal(t, "ABC123", *slot.CurrentLicensePlate)
	assert.Equal(t, t0.Add(time.Second).Unix(), slot.UpdatedAt.Unix())
}

func TestApplyParkingPush_UnknownIdentifier(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.ApplyParkingPush(context.Background(), "NOPE", true, nil, time.Now())
	assert.Error(t, err)
}

func TestSetParkingState_FlagsSyncPending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	uid := int64(7)
	assert.NoError(t, r.CreateParking(ctx, []model.ParkingSlot{
		{ID: "p1", Identifier: "A1", UserID: &uid, Available: true, UpdatedAt: time.Now()},
	}))

	assert.NoError(t, r.SetParkingState(ctx, "A1", false, strptr("ABC123"), time.Now()))
	_, slot, _ := r.FindParkingByIdentifier(ctx, "A1")
	assert.True(t, slot.SyncPending)
	assert.False(t, slot.Available)

	assert.NoError(t, r.ClearParkingSyncPending(ctx, "A1"))
	_, slot, _ = r.FindParkingByIdentifier(ctx, "A1")
	assert.False(t, slot.SyncPending)
}

func TestFindParkingByUser_PrefersAvailable(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	uid := int64(7)
	t0 := time.Now()

	assert.NoError(t, r.CreateParking(ctx, []model.ParkingSlot{
		{ID: "p1", Identifier: "A1", UserID: &uid, Available: false, UpdatedAt: t0},
		{ID: "p2", Identifier: "A2", UserID: &uid, Available: true, UpdatedAt: t0},
	}))

	found, slot, err := r.FindParkingByUser(ctx, uid)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "A2", slot.Identifier)

	// Unknown user: explicit miss, not an error.
	found, _, err = r.FindParkingByUser(ctx, 99)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestPendingEvents_OrderedOldestFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"e3", "e1", "e2"} {
		offset := map[string]int{"e1": 1, "e2": 2, "e3": 3}[id]
		assert.NoError(t, r.CreateEvent(ctx, &model.Event{
			ID: id, PocID: "poc-1", Plate: fmt.Sprintf("P%d", i), Type: model.EventAccess,
			CreatedAt: base.Add(time.Duration(offset) * time.Minute),
		}))
	}

	pending, err := r.PendingEvents(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 3)
	assert.Equal(t, "e1", pending[0].ID)
	assert.Equal(t, "e3", pending[2].ID)
}

func TestMarkEventsSynced_Monotonic(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	assert.NoError(t, r.CreateEvent(ctx, &model.Event{
		ID: "e1", PocID: "poc-1", Plate: "ABC123", Type: model.EventAccess, CreatedAt: time.Now(),
	}))
	assert.NoError(t, r.MarkEventsSynced(ctx, []string{"e1"}))

	n, err := r.CountPendingEvents(ctx)
	assert.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// Re-marking an already synced batch is a no-op, never a revert.
	assert.NoError(t, r.MarkEventsSynced(ctx, []string{"e1"}))
	pending, _ := r.PendingEvents(ctx)
	assert.Empty(t, pending)
}

func TestLatestParkingUpdate_Baseline(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	has, _, err := r.LatestParkingUpdate(ctx)
	assert.NoError(t, err)
	assert.False(t, has)

	t0 := time.Now().Truncate(time.Second)
	uid := int64(7)
	assert.NoError(t, r.CreateParking(ctx, []model.ParkingSlot{
		{ID: "p1", Identifier: "A1", UserID: &uid, Available: true, UpdatedAt: t0.Add(-time.Hour)},
		{ID: "p2", Identifier: "A2", UserID: &uid, Available: true, UpdatedAt: t0},
	}))

	has, baseline, err := r.LatestParkingUpdate(ctx)
	assert.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, t0.Unix(), baseline.Unix())
}
