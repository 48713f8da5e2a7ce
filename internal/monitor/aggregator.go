package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"smart-lighting-backend/internal/camera"
	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/metrics"
	"smart-lighting-backend/internal/model"
	"smart-lighting-backend/internal/store"
)

// Notifier dispatches a notification job for a room. Implemented by the
// notification worker pool.
type Notifier interface {
	Dispatch(roomID string)
}

// Stats are the rolling monitoring statistics exposed to the dashboard.
// Every completed detection call counts toward TotalDetections regardless of
// the confidence gate; a light switch counts only when lightStatus actually
// changed value.
type Stats struct {
	TotalDetections int64  `json:"totalDetections"`
	LightSwitches   int64  `json:"lightSwitches"`
	DetectionErrors int64  `json:"detectionErrors"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
	LastActivity    string `json:"lastActivity,omitempty"`
}

// RoomStatus describes one room's monitoring session for the API.
type RoomStatus struct {
	RoomID    string `json:"roomId"`
	State     State  `json:"state"`
	LastError string `json:"lastError,omitempty"`
}

// Aggregator is the cross-room supervisor. It owns every detection loop,
// enforces one loop per room, and tracks rolling statistics from reconcile
// outcomes.
type Aggregator struct {
	store      store.Store
	cameras    camera.Provider
	detector   detect.Client
	reconciler *Reconciler
	metrics    *metrics.Metrics
	notifier   Notifier
	timeout    time.Duration
	stopGrace  time.Duration

	mu              sync.Mutex
	loops           map[string]*Loop
	totalDetections int64
	lightSwitches   int64
	detectionErrors int64
	startedAt       time.Time
	lastActivity    time.Time
}

// NewAggregator creates the supervisor. notifier and m may be nil.
func NewAggregator(s store.Store, cameras camera.Provider, detector detect.Client, reconciler *Reconciler, m *metrics.Metrics, notifier Notifier, timeout, stopGrace time.Duration) *Aggregator {
	return &Aggregator{
		store:      s,
		cameras:    cameras,
		detector:   detector,
		reconciler: reconciler,
		metrics:    m,
		notifier:   notifier,
		timeout:    timeout,
		stopGrace:  stopGrace,
		loops:      make(map[string]*Loop),
	}
}

// Bootstrap starts loops for every room whose live-monitoring flag is set.
// Called once at daemon startup.
func (a *Aggregator) Bootstrap(ctx context.Context) error {
	rooms, err := a.store.ListRooms(ctx)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if room.LiveMonitoringEnabled {
			a.Enable(ctx, room.ID)
		}
	}
	return nil
}

// Enable starts the room's detection loop. Enabling an already-enabled room
// is a no-op: no second loop, no double camera acquisition.
func (a *Aggregator) Enable(ctx context.Context, roomID string) {
	a.mu.Lock()
	if _, exists := a.loops[roomID]; exists {
		a.mu.Unlock()
		return
	}
	loop := NewLoop(roomID, a.cameras, a.detector, a.reconciler, a.settingsFunc(), a.timeout, Hooks{
		OnDetection: a.onDetection,
		OnFailure:   a.onFailure,
	})
	a.loops[roomID] = loop
	if a.startedAt.IsZero() {
		a.startedAt = time.Now()
	}
	a.mu.Unlock()

	loop.Start()
	a.setMonitoringFlag(ctx, roomID, true)
}

// Disable stops the room's loop and clears its live-monitoring flag. It is
// idempotent and returns after the camera was released (or the grace period
// expired).
func (a *Aggregator) Disable(ctx context.Context, roomID string) {
	if a.stopLoop(roomID) {
		a.setMonitoringFlag(ctx, roomID, false)
	}
}

// HandleRoomDeleted terminates the room's monitoring before the deletion
// proceeds. The camera is released within the stop grace period.
func (a *Aggregator) HandleRoomDeleted(roomID string) {
	a.stopLoop(roomID)
}

// stopLoop removes and stops the room's loop, reporting whether one existed.
func (a *Aggregator) stopLoop(roomID string) bool {
	a.mu.Lock()
	loop, exists := a.loops[roomID]
	if exists {
		delete(a.loops, roomID)
	}
	a.mu.Unlock()

	if !exists {
		return false
	}
	loop.Stop(a.stopGrace)
	return true
}

// MasterStop stops every running loop. Per-room live-monitoring flags are
// preserved: this is the global kill switch, not a preference change.
func (a *Aggregator) MasterStop() {
	a.mu.Lock()
	loops := make([]*Loop, 0, len(a.loops))
	for id, loop := range a.loops {
		loops = append(loops, loop)
		delete(a.loops, id)
	}
	a.mu.Unlock()

	for _, loop := range loops {
		loop.Stop(a.stopGrace)
	}
	log.Printf("Master stop: %d monitoring loops stopped", len(loops))
}

// Retry re-arms a loop that failed on a camera error.
func (a *Aggregator) Retry(roomID string) bool {
	a.mu.Lock()
	loop, exists := a.loops[roomID]
	a.mu.Unlock()
	if !exists {
		return false
	}
	loop.Retry()
	return true
}

// Enabled reports whether the room has a loop (running or failed).
func (a *Aggregator) Enabled(roomID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists := a.loops[roomID]
	return exists
}

// Statuses returns the session state of every supervised room.
func (a *Aggregator) Statuses() []RoomStatus {
	a.mu.Lock()
	loops := make(map[string]*Loop, len(a.loops))
	for id, loop := range a.loops {
		loops[id] = loop
	}
	a.mu.Unlock()

	statuses := make([]RoomStatus, 0, len(loops))
	for id, loop := range loops {
		st := RoomStatus{RoomID: id, State: loop.State()}
		if err := loop.LastError(); err != nil {
			st.LastError = err.Error()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Stats returns rolling statistics since the first enable after cold start.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		TotalDetections: a.totalDetections,
		LightSwitches:   a.lightSwitches,
		DetectionErrors: a.detectionErrors,
	}
	if !a.startedAt.IsZero() {
		s.UptimeSeconds = int64(time.Since(a.startedAt).Seconds())
	}
	if !a.lastActivity.IsZero() {
		s.LastActivity = a.lastActivity.UTC().Format(time.RFC3339)
	}
	return s
}

// ResetStats zeroes the rolling statistics. Uptime restarts now if any loop
// is still supervised.
func (a *Aggregator) ResetStats() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalDetections = 0
	a.lightSwitches = 0
	a.detectionErrors = 0
	a.lastActivity = time.Time{}
	if len(a.loops) > 0 {
		a.startedAt = time.Now()
	} else {
		a.startedAt = time.Time{}
	}
}

// RecordDetection folds a reconcile outcome into the statistics. The
// detection loop calls it for live results; the upload handler calls it for
// one-shot detections.
func (a *Aggregator) RecordDetection(roomID string, res ReconcileResult, detectErr error) {
	a.mu.Lock()
	if detectErr != nil {
		a.detectionErrors++
	} else {
		a.totalDetections++
		if res.LightSwitched {
			a.lightSwitches++
		}
	}
	a.lastActivity = time.Now()
	a.mu.Unlock()

	if a.metrics != nil {
		switch {
		case detectErr != nil:
			a.metrics.RecordDetection(metrics.ResultError)
		case res.Discarded:
			a.metrics.RecordDetection(metrics.ResultDiscarded)
		case res.Status == ReconcileUpdated:
			a.metrics.RecordDetection(metrics.ResultAccepted)
		default:
			a.metrics.RecordDetection(metrics.ResultNoChange)
		}
		if res.LightSwitched {
			a.metrics.RecordLightSwitch()
		}
	}

	if detectErr == nil && res.LightSwitched && a.notifier != nil {
		a.notifier.Dispatch(roomID)
	}
}

func (a *Aggregator) onDetection(roomID string, res ReconcileResult, detectErr error) {
	a.RecordDetection(roomID, res, detectErr)
}

func (a *Aggregator) onFailure(roomID string, err error) {
	if a.metrics != nil {
		a.metrics.RecordCameraFailure()
	}
}

// settingsFunc adapts the persisted settings row for the loops. Failures
// fall back to the defaults so a transient read error never stalls a loop.
func (a *Aggregator) settingsFunc() SettingsFunc {
	return func(ctx context.Context) model.MonitoringSettings {
		settings, err := a.store.Settings(ctx)
		if err != nil {
			log.Printf("Warning: failed to load monitoring settings: %v", err)
			return model.MonitoringSettings{IntervalSeconds: 3, ConfidenceThreshold: 75}
		}
		return settings
	}
}

func (a *Aggregator) setMonitoringFlag(ctx context.Context, roomID string, enabled bool) {
	patch := store.RoomPatch{LiveMonitoringEnabled: &enabled}
	if _, err := a.store.UpdateRoom(ctx, roomID, patch); err != nil {
		log.Printf("Warning: failed to update live monitoring flag for room %s: %v", roomID, err)
	}
}
