package monitor

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/model"
	"smart-lighting-backend/internal/store"
)

// ReconcileStatus classifies the outcome of a reconcile call.
type ReconcileStatus string

const (
	// ReconcileNoChange means prior room state stands: the detection failed,
	// fell below the confidence threshold, or matched the current state.
	ReconcileNoChange ReconcileStatus = "no_change"
	// ReconcileUpdated means room state was written.
	ReconcileUpdated ReconcileStatus = "updated"
)

// ReconcileResult reports what a detection did to room state.
type ReconcileResult struct {
	Status        ReconcileStatus
	LightSwitched bool
	// Discarded is set when a successful detection was gated out by the
	// confidence threshold. It still counts as a detection for statistics,
	// never as a light switch.
	Discarded bool
	Room      *model.Room
}

// Reconciler turns raw detection results into accepted or rejected room
// state changes. It is the single writer for occupancyStatus and lightStatus
// on the automatic path.
type Reconciler struct {
	store store.Store
}

// NewReconciler creates a reconciler over the room repository.
func NewReconciler(s store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Reconcile applies one detection result to the room.
//
// Failures leave prior state untouched, and a result for a room that no
// longer exists is dropped entirely. Successful results are appended to
// the room's bounded history feed whether or not they clear the threshold;
// only results at or above the threshold may change room state. When the
// room has a manual override, only occupancyStatus is updated and the light
// is left alone.
func (r *Reconciler) Reconcile(ctx context.Context, roomID string, outcome detect.Outcome, detectErr error, settings model.MonitoringSettings, source string) (ReconcileResult, error) {
	if detectErr != nil {
		return ReconcileResult{Status: ReconcileNoChange}, nil
	}

	// The room is fetched before the history append so a detection racing a
	// room deletion cannot leave orphaned history rows behind.
	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		return ReconcileResult{Status: ReconcileNoChange}, err
	}

	if err := r.appendHistory(ctx, roomID, outcome, source); err != nil {
		// History is presentation data; a failed append must not block the
		// state update.
		log.Printf("Warning: failed to append detection history for room %s: %v", roomID, err)
	}

	if outcome.Confidence < settings.ConfidenceThreshold {
		return ReconcileResult{Status: ReconcileNoChange, Discarded: true}, nil
	}

	occupancy := model.OccupancyEmpty
	light := model.LightOff
	if outcome.Occupied {
		occupancy = model.OccupancyOccupied
		light = model.LightOn
	}

	patch := store.RoomPatch{}
	if room.OccupancyStatus != occupancy {
		patch.OccupancyStatus = &occupancy
	}
	lightSwitched := false
	if !room.ManualOverride && room.LightStatus != light {
		patch.LightStatus = &light
		lightSwitched = true
	}

	if patch.OccupancyStatus == nil && patch.LightStatus == nil {
		return ReconcileResult{Status: ReconcileNoChange}, nil
	}

	updated, err := r.store.UpdateRoom(ctx, roomID, patch)
	if err != nil {
		return ReconcileResult{Status: ReconcileNoChange}, err
	}

	return ReconcileResult{
		Status:        ReconcileUpdated,
		LightSwitched: lightSwitched,
		Room:          &updated,
	}, nil
}

func (r *Reconciler) appendHistory(ctx context.Context, roomID string, outcome detect.Outcome, source string) error {
	rec := model.DetectionRecord{
		RoomID:     roomID,
		Occupied:   outcome.Occupied,
		Confidence: outcome.Confidence,
		Source:     source,
		ObservedAt: time.Now().UTC(),
	}
	if len(outcome.BoundingBoxes) > 0 {
		if data, err := json.Marshal(outcome.BoundingBoxes); err == nil {
			rec.Boxes = string(data)
		}
	}
	return r.store.AppendDetection(ctx, rec)
}
