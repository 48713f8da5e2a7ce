package model

import "time"

// OccupancyStatus is the detected presence state of a room.
type OccupancyStatus string

const (
	OccupancyOccupied OccupancyStatus = "occupied"
	OccupancyEmpty    OccupancyStatus = "empty"
)

// LightStatus is the current state of a room's lighting.
type LightStatus string

const (
	LightOn  LightStatus = "on"
	LightOff LightStatus = "off"
)

// Room represents a monitored room and its lighting state.
type Room struct {
	ID                    string          `gorm:"primaryKey;size:64" json:"id"`
	Name                  string          `gorm:"size:128;not null" json:"name"`
	Description           string          `gorm:"size:512" json:"description"`
	ImageURL              string          `gorm:"size:512" json:"imageUrl"`
	OccupancyStatus       OccupancyStatus `gorm:"size:16;not null" json:"occupancyStatus"`
	LightStatus           LightStatus     `gorm:"size:8;not null" json:"lightStatus"`
	LiveMonitoringEnabled bool            `json:"liveMonitoringEnabled"`
	// ManualOverride removes the room's lighting from automatic control.
	// Detections may still update OccupancyStatus for display.
	ManualOverride   bool      `json:"manualOverride"`
	Brightness       int       `json:"brightness"`       // 1-100
	ColorTemperature int       `json:"colorTemperature"` // Kelvin, 2700-7000
	ColorPreset      string    `gorm:"size:32" json:"colorPreset"`
	CreatedAt        time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"not null" json:"updatedAt"`
}
