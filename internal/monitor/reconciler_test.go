package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/model"
	"smart-lighting-backend/internal/store"
)

// A helper function to create a store over an in-memory test database. Each
// test gets its own named database so state cannot leak between tests.
func newTestStore(t *testing.T) store.Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	err = db.AutoMigrate(&model.Room{}, &model.DetectionRecord{}, &model.MonitoringSettings{})
	require.NoError(t, err)
	return store.NewGormStore(db)
}

func defaultSettings() model.MonitoringSettings {
	return model.MonitoringSettings{IntervalSeconds: 3, ConfidenceThreshold: 75}
}

func TestReconciler_DetectionFailureLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)
	r := NewReconciler(s)
	ctx := context.Background()

	room, err := s.InsertRoom(ctx, store.RoomDraft{Name: "Living Room"})
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, room.ID, detect.Outcome{}, errors.New("backend unreachable"), defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileNoChange, res.Status)
	assert.False(t, res.LightSwitched)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OccupancyEmpty, got.OccupancyStatus)
	assert.Equal(t, model.LightOff, got.LightStatus)

	records, err := s.Detections(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, records, "failed detections never enter the history feed")
}

func TestReconciler_BelowThresholdIsDiscarded(t *testing.T) {
	s := newTestStore(t)
	r := NewReconciler(s)
	ctx := context.Background()

	room, err := s.InsertRoom(ctx, store.RoomDraft{Name: "Living Room"})
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, room.ID, detect.Outcome{Occupied: true, Confidence: 60}, nil, defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileNoChange, res.Status)
	assert.True(t, res.Discarded)
	assert.False(t, res.LightSwitched)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OccupancyEmpty, got.OccupancyStatus, "a gated detection must not change occupancy")
	assert.Equal(t, model.LightOff, got.LightStatus, "a gated detection must not switch the light")

	records, err := s.Detections(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, records, 1, "gated detections still enter the history feed")
	assert.Equal(t, 60.0, records[0].Confidence)
}

func TestReconciler_AcceptedDetectionDrivesLight(t *testing.T) {
	s := newTestStore(t)
	r := NewReconciler(s)
	ctx := context.Background()

	room, err := s.InsertRoom(ctx, store.RoomDraft{Name: "Living Room"})
	require.NoError(t, err)

	// Occupied above threshold: light turns on.
	outcome := detect.Outcome{
		Occupied:   true,
		Confidence: 90,
		BoundingBoxes: []detect.BoundingBox{
			{X: 100, Y: 50, Width: 80, Height: 120, Confidence: 90},
		},
	}
	res, err := r.Reconcile(ctx, room.ID, outcome, nil, defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileUpdated, res.Status)
	assert.True(t, res.LightSwitched)
	require.NotNil(t, res.Room)
	assert.Equal(t, model.OccupancyOccupied, res.Room.OccupancyStatus)
	assert.Equal(t, model.LightOn, res.Room.LightStatus)

	// Same verdict again: nothing to write, no switch counted.
	res, err = r.Reconcile(ctx, room.ID, outcome, nil, defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileNoChange, res.Status)
	assert.False(t, res.LightSwitched)

	// Room empties: light turns off.
	res, err = r.Reconcile(ctx, room.ID, detect.Outcome{Occupied: false, Confidence: 95}, nil, defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileUpdated, res.Status)
	assert.True(t, res.LightSwitched)
	assert.Equal(t, model.LightOff, res.Room.LightStatus)

	records, err := s.Detections(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestReconciler_DeletedRoomLeavesNoHistory(t *testing.T) {
	s := newTestStore(t)
	r := NewReconciler(s)
	ctx := context.Background()

	room, err := s.InsertRoom(ctx, store.RoomDraft{Name: "Living Room"})
	require.NoError(t, err)
	deleted, err := s.DeleteRoom(ctx, room.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	res, err := r.Reconcile(ctx, room.ID, detect.Outcome{Occupied: true, Confidence: 90}, nil, defaultSettings(), "live_camera")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, ReconcileNoChange, res.Status)

	records, err := s.Detections(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, records, "a detection racing a deletion must not leave orphaned history rows")
}

func TestReconciler_ManualOverrideKeepsLightAlone(t *testing.T) {
	s := newTestStore(t)
	r := NewReconciler(s)
	ctx := context.Background()

	room, err := s.InsertRoom(ctx, store.RoomDraft{Name: "Living Room"})
	require.NoError(t, err)

	override := true
	_, err = s.UpdateRoom(ctx, room.ID, store.RoomPatch{ManualOverride: &override})
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, room.ID, detect.Outcome{Occupied: true, Confidence: 90}, nil, defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileUpdated, res.Status, "occupancy still updates under override")
	assert.False(t, res.LightSwitched, "the light is not touched under override")
	assert.Equal(t, model.OccupancyOccupied, res.Room.OccupancyStatus)
	assert.Equal(t, model.LightOff, res.Room.LightStatus)

	// With occupancy already matching, an override room has nothing to write
	// even though occupancy and light disagree.
	res, err = r.Reconcile(ctx, room.ID, detect.Outcome{Occupied: true, Confidence: 90}, nil, defaultSettings(), "live_camera")
	require.NoError(t, err)
	assert.Equal(t, ReconcileNoChange, res.Status)
	assert.False(t, res.LightSwitched)
}
