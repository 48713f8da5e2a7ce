// Package camera provides frame acquisition for room monitoring. Real
// deployments plug in a device-backed opener; the default simulated opener
// yields synthetic frames for the stub detection backend.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned when a room has no usable camera, or access to
// it was denied.
var ErrUnavailable = errors.New("camera unavailable")

// ErrAlreadyAcquired is returned when a room's camera is already held by a
// running monitoring session.
var ErrAlreadyAcquired = errors.New("camera already acquired for room")

// Source is an acquired camera stream for one room. It must be released on
// every exit path; Release is idempotent.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
	Release()
}

// Provider acquires the camera source for a room.
type Provider interface {
	Acquire(ctx context.Context, roomID string) (Source, error)
}

// Manager enforces exclusive ownership: at most one live Source per room.
// The underlying opener supplies the actual stream.
type Manager struct {
	open func(ctx context.Context, roomID string) (Source, error)

	mu   sync.Mutex
	held map[string]bool
}

// NewManager creates a camera manager around an opener.
func NewManager(open func(ctx context.Context, roomID string) (Source, error)) *Manager {
	return &Manager{
		open: open,
		held: make(map[string]bool),
	}
}

// Acquire opens the room's camera. Fails with ErrAlreadyAcquired if another
// session still holds it.
func (m *Manager) Acquire(ctx context.Context, roomID string) (Source, error) {
	m.mu.Lock()
	if m.held[roomID] {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAcquired, roomID)
	}
	m.held[roomID] = true
	m.mu.Unlock()

	src, err := m.open(ctx, roomID)
	if err != nil {
		m.mu.Lock()
		delete(m.held, roomID)
		m.mu.Unlock()
		return nil, err
	}

	return &managedSource{Source: src, release: func() {
		m.mu.Lock()
		delete(m.held, roomID)
		m.mu.Unlock()
	}}, nil
}

// Held reports whether a room's camera is currently acquired.
func (m *Manager) Held(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[roomID]
}

// managedSource returns the room's slot to the manager on release.
type managedSource struct {
	Source
	once    sync.Once
	release func()
}

func (s *managedSource) Release() {
	s.once.Do(func() {
		s.Source.Release()
		s.release()
	})
}
