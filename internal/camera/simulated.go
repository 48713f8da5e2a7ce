package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// SimulatedOpener yields synthetic frame sources. It stands in for a real
// capture device when the detection backend is the stub.
type SimulatedOpener struct {
	mu          sync.Mutex
	unavailable map[string]bool
}

// NewSimulatedOpener creates a simulated camera opener.
func NewSimulatedOpener() *SimulatedOpener {
	return &SimulatedOpener{unavailable: make(map[string]bool)}
}

// SetUnavailable marks a room's camera as present or absent. Acquiring an
// absent camera fails with ErrUnavailable, which drives the loop's Failed
// state.
func (o *SimulatedOpener) SetUnavailable(roomID string, unavailable bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unavailable[roomID] = unavailable
}

// Open returns a simulated source for the room.
func (o *SimulatedOpener) Open(ctx context.Context, roomID string) (Source, error) {
	o.mu.Lock()
	down := o.unavailable[roomID]
	o.mu.Unlock()
	if down {
		return nil, fmt.Errorf("%w: no device for room %s", ErrUnavailable, roomID)
	}
	return &SimulatedSource{roomID: roomID}, nil
}

// SimulatedSource produces synthetic frames tagged with the room id and a
// sequence number.
type SimulatedSource struct {
	roomID   string
	seq      atomic.Uint64
	released atomic.Bool
}

// Capture returns the next synthetic frame.
func (s *SimulatedSource) Capture(ctx context.Context) ([]byte, error) {
	if s.released.Load() {
		return nil, fmt.Errorf("%w: source released", ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq := s.seq.Add(1)
	return []byte(fmt.Sprintf("frame:%s:%d", s.roomID, seq)), nil
}

// Release stops the simulated stream.
func (s *SimulatedSource) Release() {
	s.released.Store(true)
}

// Released reports whether the stream was stopped.
func (s *SimulatedSource) Released() bool {
	return s.released.Load()
}
