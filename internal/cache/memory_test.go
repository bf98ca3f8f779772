package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StateRoundTrip(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock[*domain.WorkflowState](clock.Now))
	ctx := context.Background()

	state := domain.NewIdleState("s1", "u1", clock.Now())
	state.Flow = domain.FlowBooking
	state.Step = domain.StepCollectingDate
	state.Slots[domain.SlotOrigin] = "BOS"

	require.NoError(t, store.SetState(ctx, state, time.Minute))

	// mutating the caller's copy must not leak into the cache
	state.Slots[domain.SlotOrigin] = "JFK"

	got, err := store.GetState(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BOS", got.Slots[domain.SlotOrigin])

	clock.Advance(time.Minute)
	got, err = store.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_DeleteState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SetState(ctx, domain.NewIdleState("s1", "u1", time.Now()), time.Minute))
	require.NoError(t, store.DeleteState(ctx, "s1"))

	got, err := store.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_AcquireCommit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.AcquireCommit(ctx, "c1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireCommit(ctx, "c1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.AcquireCommit(ctx, "c2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
