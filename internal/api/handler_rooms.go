package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-lighting-backend/internal/model"
	"smart-lighting-backend/internal/store"
)

type createRoomRequest struct {
	Name                  string `json:"name" binding:"required"`
	Description           string `json:"description"`
	ImageURL              string `json:"imageUrl"`
	LiveMonitoringEnabled bool   `json:"liveMonitoringEnabled"`
	Brightness            int    `json:"brightness"`
	ColorTemperature      int    `json:"colorTemperature"`
	ColorPreset           string `json:"colorPreset"`
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.InsertRoom(c.Request.Context(), store.RoomDraft{
		Name:             req.Name,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		Brightness:       req.Brightness,
		ColorTemperature: req.ColorTemperature,
		ColorPreset:      req.ColorPreset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	if req.LiveMonitoringEnabled {
		h.aggregator.Enable(c.Request.Context(), room.ID)
		room, _ = h.store.GetRoom(c.Request.Context(), room.ID)
	}

	c.JSON(http.StatusCreated, room)
}

// ListRooms handles GET /api/rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rooms"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetRoom handles GET /api/rooms/:room_id.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.store.GetRoom(c.Request.Context(), c.Param("room_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve room"})
		return
	}
	c.JSON(http.StatusOK, room)
}

type updateRoomRequest struct {
	Name                  *string                `json:"name"`
	Description           *string                `json:"description"`
	ImageURL              *string                `json:"imageUrl"`
	OccupancyStatus       *model.OccupancyStatus `json:"occupancyStatus"`
	LightStatus           *model.LightStatus     `json:"lightStatus"`
	LiveMonitoringEnabled *bool                  `json:"liveMonitoringEnabled"`
	ManualOverride        *bool                  `json:"manualOverride"`
	Brightness            *int                   `json:"brightness"`
	ColorTemperature      *int                   `json:"colorTemperature"`
	ColorPreset           *string                `json:"colorPreset"`
}

// UpdateRoom handles PATCH /api/rooms/:room_id. Absent fields are preserved.
// The live-monitoring flag is routed through the aggregator so the room's
// detection loop follows it.
func (h *Handler) UpdateRoom(c *gin.Context) {
	var req updateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID := c.Param("room_id")
	patch := store.RoomPatch{
		Name:             req.Name,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		OccupancyStatus:  req.OccupancyStatus,
		LightStatus:      req.LightStatus,
		ManualOverride:   req.ManualOverride,
		Brightness:       req.Brightness,
		ColorTemperature: req.ColorTemperature,
		ColorPreset:      req.ColorPreset,
	}

	room, err := h.store.UpdateRoom(c.Request.Context(), roomID, patch)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update room"})
		return
	}

	if req.LiveMonitoringEnabled != nil {
		if *req.LiveMonitoringEnabled {
			h.aggregator.Enable(c.Request.Context(), roomID)
		} else {
			h.aggregator.Disable(c.Request.Context(), roomID)
		}
		room, _ = h.store.GetRoom(c.Request.Context(), roomID)
	}

	c.JSON(http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/rooms/:room_id. A running detection loop is
// terminated, and its camera released, before the row is removed.
func (h *Handler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("room_id")

	h.aggregator.HandleRoomDeleted(roomID)

	deleted, err := h.store.DeleteRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete room"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
