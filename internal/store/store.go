package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smart-lighting-backend/config"
	"smart-lighting-backend/internal/model"
)

// HistoryLimit is the number of detection records retained per room.
const HistoryLimit = 10

// ErrNotFound is returned when a room does not exist.
var ErrNotFound = errors.New("room not found")

// Store defines the interface for all room repository operations. Writes
// notify subscribers synchronously, in write order, after they commit.
type Store interface {
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetRoom(ctx context.Context, id string) (model.Room, error)
	InsertRoom(ctx context.Context, draft RoomDraft) (model.Room, error)
	UpdateRoom(ctx context.Context, id string, patch RoomPatch) (model.Room, error)
	DeleteRoom(ctx context.Context, id string) (bool, error)

	AppendDetection(ctx context.Context, rec model.DetectionRecord) error
	Detections(ctx context.Context, roomID string) ([]model.DetectionRecord, error)

	Settings(ctx context.Context) (model.MonitoringSettings, error)
	UpdateSettings(ctx context.Context, intervalSeconds int, confidenceThreshold float64) (model.MonitoringSettings, error)

	// Subscribe registers a listener for repository events. The returned
	// function unsubscribes it.
	Subscribe(fn func(Event)) func()

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB

	// writeMu serializes room writes so concurrent updates cannot interleave a
	// read-modify-write, and so subscriber notification order matches write
	// order.
	writeMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSubID   int
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:          db,
		subscribers: make(map[int]func(Event)),
	}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// notify delivers an event to every subscriber synchronously. Callers hold
// writeMu, which preserves write order across subscribers.
func (s *gormStore) notify(ev Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		fn(ev)
	}
}

func (s *gormStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *gormStore) GetRoom(ctx context.Context, id string) (model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Room{}, ErrNotFound
	}
	if err != nil {
		return model.Room{}, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return room, nil
}

func (s *gormStore) InsertRoom(ctx context.Context, draft RoomDraft) (model.Room, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	room := model.Room{
		ID:                    uuid.NewString(),
		Name:                  draft.Name,
		Description:           draft.Description,
		ImageURL:              draft.ImageURL,
		OccupancyStatus:       model.OccupancyEmpty,
		LightStatus:           model.LightOff,
		LiveMonitoringEnabled: draft.LiveMonitoringEnabled,
		Brightness:            clampBrightness(draft.Brightness),
		ColorTemperature:      clampColorTemperature(draft.ColorTemperature),
		ColorPreset:           draft.ColorPreset,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return model.Room{}, fmt.Errorf("failed to insert room: %w", err)
	}

	s.notify(Event{Type: EventRoomCreated, Room: &room, RoomID: room.ID})
	return room, nil
}

// UpdateRoom merges the patch into the stored room atomically. The merge is
// applied as a whole under the write lock, so the last update wins without
// lost fields. UpdatedAt never decreases.
func (s *gormStore) UpdateRoom(ctx context.Context, id string, patch RoomPatch) (model.Room, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var room model.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&room, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		applyPatch(&room, patch)

		now := time.Now().UTC()
		if now.After(room.UpdatedAt) {
			room.UpdatedAt = now
		}
		return tx.Save(&room).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Room{}, ErrNotFound
		}
		return model.Room{}, fmt.Errorf("failed to update room %s: %w", id, err)
	}

	s.notify(Event{Type: EventRoomUpdated, Room: &room, RoomID: room.ID})
	return room, nil
}

func applyPatch(room *model.Room, patch RoomPatch) {
	if patch.Name != nil {
		room.Name = *patch.Name
	}
	if patch.Description != nil {
		room.Description = *patch.Description
	}
	if patch.ImageURL != nil {
		room.ImageURL = *patch.ImageURL
	}
	if patch.OccupancyStatus != nil {
		room.OccupancyStatus = *patch.OccupancyStatus
	}
	if patch.LightStatus != nil {
		room.LightStatus = *patch.LightStatus
	}
	if patch.LiveMonitoringEnabled != nil {
		room.LiveMonitoringEnabled = *patch.LiveMonitoringEnabled
	}
	if patch.ManualOverride != nil {
		room.ManualOverride = *patch.ManualOverride
	}
	if patch.Brightness != nil {
		room.Brightness = clampBrightness(*patch.Brightness)
	}
	if patch.ColorTemperature != nil {
		room.ColorTemperature = clampColorTemperature(*patch.ColorTemperature)
	}
	if patch.ColorPreset != nil {
		room.ColorPreset = *patch.ColorPreset
	}
}

func (s *gormStore) DeleteRoom(ctx context.Context, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Room{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		if !deleted {
			return nil
		}
		return tx.Where("room_id = ?", id).Delete(&model.DetectionRecord{}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete room %s: %w", id, err)
	}

	if deleted {
		s.notify(Event{Type: EventRoomDeleted, RoomID: id})
	}
	return deleted, nil
}

// AppendDetection stores a detection record and trims the room's history to
// the most recent HistoryLimit entries.
func (s *gormStore) AppendDetection(ctx context.Context, rec model.DetectionRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		keep := tx.Session(&gorm.Session{NewDB: true}).
			Model(&model.DetectionRecord{}).
			Select("id").
			Where("room_id = ?", rec.RoomID).
			Order("observed_at DESC, id DESC").
			Limit(HistoryLimit)
		return tx.Where("room_id = ? AND id NOT IN (?)", rec.RoomID, keep).
			Delete(&model.DetectionRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append detection for room %s: %w", rec.RoomID, err)
	}

	s.notify(Event{Type: EventDetection, RoomID: rec.RoomID, Detection: &rec})
	return nil
}

func (s *gormStore) Detections(ctx context.Context, roomID string) ([]model.DetectionRecord, error) {
	var records []model.DetectionRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("observed_at DESC, id DESC").
		Limit(HistoryLimit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load detections for room %s: %w", roomID, err)
	}
	return records, nil
}

// settingsRowID is the primary key of the single settings row.
const settingsRowID = 1

func (s *gormStore) Settings(ctx context.Context) (model.MonitoringSettings, error) {
	var settings model.MonitoringSettings
	err := s.db.WithContext(ctx).First(&settings, "id = ?", settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.MonitoringSettings{
			ID:                  settingsRowID,
			IntervalSeconds:     3,
			ConfidenceThreshold: 75,
		}, nil
	}
	if err != nil {
		return model.MonitoringSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func (s *gormStore) UpdateSettings(ctx context.Context, intervalSeconds int, confidenceThreshold float64) (model.MonitoringSettings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	settings := model.MonitoringSettings{
		ID:                  settingsRowID,
		IntervalSeconds:     config.ClampInterval(intervalSeconds),
		ConfidenceThreshold: config.ClampConfidence(confidenceThreshold),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&settings).Error; err != nil {
		return model.MonitoringSettings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}

func clampBrightness(v int) int {
	if v <= 0 {
		return 80
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampColorTemperature(v int) int {
	if v == 0 {
		return 3000
	}
	if v < 2700 {
		return 2700
	}
	if v > 7000 {
		return 7000
	}
	return v
}
