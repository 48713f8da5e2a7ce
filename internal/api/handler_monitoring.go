package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-lighting-backend/internal/store"
)

type setMonitoringRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetMonitoring handles POST /api/rooms/:room_id/monitoring: the per-room
// live-monitoring switch. Enabling an already-enabled room is a no-op.
func (h *Handler) SetMonitoring(c *gin.Context) {
	var req setMonitoringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID := c.Param("room_id")
	if _, err := h.store.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve room"})
		return
	}

	if *req.Enabled {
		h.aggregator.Enable(c.Request.Context(), roomID)
	} else {
		h.aggregator.Disable(c.Request.Context(), roomID)
	}

	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "enabled": *req.Enabled})
}

// RetryMonitoring handles POST /api/rooms/:room_id/monitoring/retry: re-arms
// a loop that failed on a camera error.
func (h *Handler) RetryMonitoring(c *gin.Context) {
	roomID := c.Param("room_id")
	if !h.aggregator.Retry(roomID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No monitoring session for room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "retrying": true})
}

// GetMonitoring handles GET /api/monitoring: per-room session states plus
// whether any loop is supervised at all.
func (h *Handler) GetMonitoring(c *gin.Context) {
	statuses := h.aggregator.Statuses()
	c.JSON(http.StatusOK, gin.H{"rooms": statuses, "active": len(statuses) > 0})
}

// MasterStop handles POST /api/monitoring/stop.
func (h *Handler) MasterStop(c *gin.Context) {
	h.aggregator.MasterStop()
	c.Status(http.StatusNoContent)
}

// GetStats handles GET /api/monitoring/stats.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.aggregator.Stats())
}

// ResetStats handles POST /api/monitoring/stats/reset.
func (h *Handler) ResetStats(c *gin.Context) {
	h.aggregator.ResetStats()
	c.JSON(http.StatusOK, h.aggregator.Stats())
}

// GetSettings handles GET /api/monitoring/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.store.Settings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type putSettingsRequest struct {
	IntervalSeconds     int     `json:"intervalSeconds" binding:"required"`
	ConfidenceThreshold float64 `json:"confidenceThreshold" binding:"required"`
}

// PutSettings handles PUT /api/monitoring/settings. Out-of-range values are
// clamped, never rejected.
func (h *Handler) PutSettings(c *gin.Context) {
	var req putSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.store.UpdateSettings(c.Request.Context(), req.IntervalSeconds, req.ConfidenceThreshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}
