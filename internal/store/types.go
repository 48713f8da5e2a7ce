package store

import "smart-lighting-backend/internal/model"

// RoomDraft carries the user-supplied fields for a new room. The store
// assigns the id and timestamps.
type RoomDraft struct {
	Name                  string
	Description           string
	ImageURL              string
	LiveMonitoringEnabled bool
	Brightness            int
	ColorTemperature      int
	ColorPreset           string
}

// RoomPatch is a partial room update. Nil fields are left untouched so an
// update is a merge, never a replace.
type RoomPatch struct {
	Name                  *string
	Description           *string
	ImageURL              *string
	OccupancyStatus       *model.OccupancyStatus
	LightStatus           *model.LightStatus
	LiveMonitoringEnabled *bool
	ManualOverride        *bool
	Brightness            *int
	ColorTemperature      *int
	ColorPreset           *string
}

// EventType identifies a repository change.
type EventType string

const (
	EventRoomCreated EventType = "room_created"
	EventRoomUpdated EventType = "room_updated"
	EventRoomDeleted EventType = "room_deleted"
	EventDetection   EventType = "detection"
)

// Event is delivered to subscribers synchronously, in write order.
type Event struct {
	Type      EventType              `json:"type"`
	Room      *model.Room            `json:"room,omitempty"`
	RoomID    string                 `json:"roomId"`
	Detection *model.DetectionRecord `json:"detection,omitempty"`
}
