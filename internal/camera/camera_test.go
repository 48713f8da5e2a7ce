package camera

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ExclusiveAcquisition(t *testing.T) {
	opener := NewSimulatedOpener()
	manager := NewManager(opener.Open)
	ctx := context.Background()

	src, err := manager.Acquire(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, manager.Held("room-1"))

	_, err = manager.Acquire(ctx, "room-1")
	assert.ErrorIs(t, err, ErrAlreadyAcquired)

	// Other rooms are unaffected.
	other, err := manager.Acquire(ctx, "room-2")
	require.NoError(t, err)
	other.Release()

	src.Release()
	assert.False(t, manager.Held("room-1"), "release must return the room's slot")

	src2, err := manager.Acquire(ctx, "room-1")
	require.NoError(t, err)
	src2.Release()
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	opener := NewSimulatedOpener()
	manager := NewManager(opener.Open)

	src, err := manager.Acquire(context.Background(), "room-1")
	require.NoError(t, err)

	src.Release()
	src.Release()
	assert.False(t, manager.Held("room-1"))

	// A double release must not free a slot re-acquired in between.
	src2, err := manager.Acquire(context.Background(), "room-1")
	require.NoError(t, err)
	src.Release()
	assert.True(t, manager.Held("room-1"))
	src2.Release()
}

func TestManager_OpenerFailureFreesSlot(t *testing.T) {
	opener := NewSimulatedOpener()
	opener.SetUnavailable("room-1", true)
	manager := NewManager(opener.Open)

	_, err := manager.Acquire(context.Background(), "room-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, manager.Held("room-1"), "a failed open must not leave the slot held")

	opener.SetUnavailable("room-1", false)
	src, err := manager.Acquire(context.Background(), "room-1")
	require.NoError(t, err)
	src.Release()
}

func TestSimulatedSource_Capture(t *testing.T) {
	opener := NewSimulatedOpener()
	src, err := opener.Open(context.Background(), "room-1")
	require.NoError(t, err)

	frame, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "frame:room-1:1", string(frame))

	frame, err = src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "frame:room-1:2", string(frame))

	src.Release()
	_, err = src.Capture(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable, "captures after release must fail")
}
