package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/monitor"
	"smart-lighting-backend/internal/store"
)

// maxUploadBytes caps one-shot detection uploads.
const maxUploadBytes = 10 << 20

// DetectUpload handles POST /api/rooms/:room_id/detect: one-shot occupancy
// detection from an uploaded image, reconciled the same way live results
// are.
func (h *Handler) DetectUpload(c *gin.Context) {
	roomID := c.Param("room_id")
	if _, err := h.store.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve room"})
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	frame, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil || len(frame) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}

	settings, err := h.store.Settings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.uploadTimeout)
	defer cancel()
	outcome, detectErr := h.detector.Detect(ctx, frame, roomID, settings.ConfidenceThreshold)

	res, recErr := h.reconciler.Reconcile(c.Request.Context(), roomID, outcome, detectErr, settings, "upload")
	h.aggregator.RecordDetection(roomID, res, detectErr)

	if detectErr != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(detectErr, detect.ErrTimeout):
			status = http.StatusGatewayTimeout
		case errors.Is(detectErr, detect.ErrInvalidInput):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": detectErr.Error()})
		return
	}
	if recErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to apply detection"})
		return
	}

	room, _ := h.store.GetRoom(c.Request.Context(), roomID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"roomId":  roomID,
		"detection": gin.H{
			"occupied":         outcome.Occupied,
			"confidence":       outcome.Confidence,
			"boundingBoxes":    outcome.BoundingBoxes,
			"processingTimeMs": outcome.ProcessingTimeMs,
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		},
		"accepted": res.Status == monitor.ReconcileUpdated,
		"room":     room,
	})
}

// detectionEntry is one row of the history feed with parsed bounding boxes.
type detectionEntry struct {
	Occupied      bool                 `json:"occupied"`
	Confidence    float64              `json:"confidence"`
	Source        string               `json:"source"`
	BoundingBoxes []detect.BoundingBox `json:"boundingBoxes,omitempty"`
	ObservedAt    time.Time            `json:"timestamp"`
}

// GetDetections handles GET /api/rooms/:room_id/detections: the room's
// bounded detection history, newest first.
func (h *Handler) GetDetections(c *gin.Context) {
	roomID := c.Param("room_id")
	if _, err := h.store.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve room"})
		return
	}

	records, err := h.store.Detections(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load detections"})
		return
	}

	entries := make([]detectionEntry, 0, len(records))
	for _, rec := range records {
		entry := detectionEntry{
			Occupied:   rec.Occupied,
			Confidence: rec.Confidence,
			Source:     rec.Source,
			ObservedAt: rec.ObservedAt,
		}
		if rec.Boxes != "" {
			_ = json.Unmarshal([]byte(rec.Boxes), &entry.BoundingBoxes)
		}
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, entries)
}
