package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubClient_Detect(t *testing.T) {
	client := NewStubClient(42, 0)

	for i := 0; i < 20; i++ {
		out, err := client.Detect(context.Background(), []byte("frame"), "room-1", 75)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, out.Confidence, 75.0)
		assert.LessOrEqual(t, out.Confidence, 100.0)
		assert.GreaterOrEqual(t, out.ProcessingTimeMs, int64(200))
		assert.Less(t, out.ProcessingTimeMs, int64(700))

		if out.Occupied && out.Confidence >= 75 {
			require.Len(t, out.BoundingBoxes, 1, "above-threshold occupancy carries a synthetic box")
			assert.Equal(t, out.Confidence, out.BoundingBoxes[0].Confidence)
		} else {
			assert.Empty(t, out.BoundingBoxes)
		}
	}
}

func TestStubClient_EmptyFrame(t *testing.T) {
	client := NewStubClient(1, 0)
	_, err := client.Detect(context.Background(), nil, "room-1", 75)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStubClient_CancelledDuringLatency(t *testing.T) {
	client := NewStubClient(1, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Detect(ctx, []byte("frame"), "room-1", 75)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "cancellation must interrupt the simulated latency")
}
