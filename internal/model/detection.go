package model

import "time"

// DetectionRecord is one entry in a room's bounded detection history.
// Only the most recent entries per room are retained (see store.HistoryLimit);
// older rows are trimmed on append.
type DetectionRecord struct {
	ID         int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	RoomID     string    `gorm:"index;size:64;not null" json:"roomId"`
	Occupied   bool      `gorm:"not null" json:"occupied"`
	Confidence float64   `gorm:"not null" json:"confidence"` // percent, 0-100
	Source     string    `gorm:"size:32;not null" json:"source"`
	Boxes      string    `json:"-"` // bounding boxes, JSON-encoded
	ObservedAt time.Time `gorm:"not null;index" json:"observedAt"`
}

// MonitoringSettings is the single persisted row of user-editable detection
// settings. Out-of-range values are clamped on write, never rejected.
type MonitoringSettings struct {
	ID                  int64     `gorm:"primaryKey" json:"-"`
	IntervalSeconds     int       `gorm:"not null" json:"intervalSeconds"`
	ConfidenceThreshold float64   `gorm:"not null" json:"confidenceThreshold"` // percent, 50-95
	UpdatedAt           time.Time `gorm:"not null" json:"updatedAt"`
}
