package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"smart-lighting-backend/internal/camera"
	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/metrics"
	"smart-lighting-backend/internal/model"
	"smart-lighting-backend/internal/monitor"
	"smart-lighting-backend/internal/store"
)

// TestLiveMonitoringLifecycle runs a room through a full occupancy cycle,
// occupied then empty, against a mock detection backend, and verifies room
// state, history, and statistics at each step.
func TestLiveMonitoringLifecycle(t *testing.T) {
	// --- Test Setup ---

	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to the in-memory database: %v", err)
	}
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	err = testDB.AutoMigrate(&model.Room{}, &model.DetectionRecord{}, &model.MonitoringSettings{})
	require.NoError(t, err)

	appStore := store.NewGormStore(testDB)
	ctx := context.Background()

	// Tighten the interval so the loop ticks quickly.
	_, err = appStore.UpdateSettings(ctx, 1, 75)
	require.NoError(t, err)

	// 2. Mock server to simulate the detection backend: one occupied verdict,
	// then empty for every later call.
	var mu sync.Mutex
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		reply := map[string]any{
			"success":          true,
			"occupied":         first,
			"confidence":       95.0,
			"processingTimeMs": 250,
		}
		if first {
			reply["confidence"] = 90.0
			reply["boundingBoxes"] = []map[string]any{
				{"x": 120, "y": 60, "width": 90, "height": 140, "confidence": 90.0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(reply)
		assert.NoError(t, err)
	}))
	defer server.Close()

	// 3. Instantiate the monitoring engine over the mock backend.
	detector := detect.NewHTTPClient(server.URL)
	manager := camera.NewManager(camera.NewSimulatedOpener().Open)
	reconciler := monitor.NewReconciler(appStore)
	aggregator := monitor.NewAggregator(appStore, manager, detector, reconciler, metrics.New(), nil, 2*time.Second, 2*time.Second)
	defer aggregator.MasterStop()

	room, err := appStore.InsertRoom(ctx, store.RoomDraft{Name: "Living Room"})
	require.NoError(t, err)

	// --- Cycle 1: Room becomes occupied, light turns on ---
	aggregator.Enable(ctx, room.ID)
	require.Eventually(t, func() bool {
		return manager.Held(room.ID)
	}, 5*time.Second, 10*time.Millisecond, "enabling monitoring should acquire the camera")

	require.Eventually(t, func() bool {
		got, err := appStore.GetRoom(ctx, room.ID)
		return err == nil && got.LightStatus == model.LightOn
	}, 5*time.Second, 20*time.Millisecond, "an accepted occupied detection should turn the light on")

	got, err := appStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OccupancyOccupied, got.OccupancyStatus)
	assert.True(t, got.LiveMonitoringEnabled)

	// --- Cycle 2: Room empties, light turns off ---
	require.Eventually(t, func() bool {
		got, err := appStore.GetRoom(ctx, room.ID)
		return err == nil && got.LightStatus == model.LightOff
	}, 5*time.Second, 20*time.Millisecond, "an accepted empty detection should turn the light off")

	got, err = appStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OccupancyEmpty, got.OccupancyStatus)

	// --- Shutdown: the master stop releases the camera but keeps the flag ---
	aggregator.MasterStop()
	assert.False(t, manager.Held(room.ID))

	got, err = appStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.LiveMonitoringEnabled, "master stop preserves the room's monitoring preference")

	// Every successful detection entered the bounded history feed, the first
	// one with its bounding box.
	records, err := appStore.Detections(ctx, room.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 2)
	assert.LessOrEqual(t, len(records), store.HistoryLimit)
	for _, rec := range records {
		assert.Equal(t, "live_camera", rec.Source)
	}
	oldest := records[len(records)-1]
	assert.True(t, oldest.Occupied)
	assert.NotEmpty(t, oldest.Boxes)

	// Statistics reflect both light transitions and no errors.
	stats := aggregator.Stats()
	assert.GreaterOrEqual(t, stats.TotalDetections, int64(2))
	assert.Equal(t, int64(2), stats.LightSwitches)
	assert.Equal(t, int64(0), stats.DetectionErrors)
}
