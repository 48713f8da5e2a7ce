package detect

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// StubClient simulates a detection model. It reproduces the behavior the
// dashboard was prototyped against: a bias toward occupancy, confidence in
// the 75-100% band, and a synthetic person bounding box when the result
// clears the threshold.
type StubClient struct {
	// Latency is the simulated inference delay per call.
	Latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStubClient creates a stub detection client. A zero seed gives
// time-seeded randomness.
func NewStubClient(seed int64, latency time.Duration) *StubClient {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &StubClient{
		Latency: latency,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Detect returns a randomized verdict after the configured latency. It
// honors context cancellation during the simulated delay.
func (s *StubClient) Detect(ctx context.Context, frame []byte, roomID string, confidenceThreshold float64) (Outcome, error) {
	if len(frame) == 0 {
		return Outcome{}, ErrInvalidInput
	}

	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}, ErrTimeout
		case <-timer.C:
		}
	}

	s.mu.Lock()
	occupied := s.rng.Float64() > 0.3
	confidence := 75 + s.rng.Float64()*25
	processing := 200 + s.rng.Int63n(500)
	var boxes []BoundingBox
	if occupied && confidence >= confidenceThreshold {
		boxes = []BoundingBox{{
			X:          100 + s.rng.Intn(200),
			Y:          50 + s.rng.Intn(150),
			Width:      80 + s.rng.Intn(100),
			Height:     120 + s.rng.Intn(150),
			Confidence: confidence,
		}}
	}
	s.mu.Unlock()

	return Outcome{
		Occupied:         occupied,
		Confidence:       confidence,
		BoundingBoxes:    boxes,
		ProcessingTimeMs: processing,
	}, nil
}
