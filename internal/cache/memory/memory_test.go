package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBusPatternSubscribe(t *testing.T) {
	bus := NewSignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, err := bus.Subscribe(ctx, "product:*")
	require.NoError(t, err)
	one, err := bus.Subscribe(ctx, "product:p2")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "product:p1", []byte("a")))
	require.NoError(t, bus.Publish(ctx, "product:p2", []byte("b")))

	assert.Equal(t, []byte("a"), <-all)
	assert.Equal(t, []byte("b"), <-all)
	assert.Equal(t, []byte("b"), <-one)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-all
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSignalBusStreams(t *testing.T) {
	bus := NewSignalBus()
	ctx := context.Background()

	for _, p := range []string{"x", "y", "z"} {
		require.NoError(t, bus.StreamAppend(ctx, "market:events", []byte(p)))
	}

	msgs, err := bus.StreamRead(ctx, "market:events", "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("x"), msgs[0].Payload)

	msgs, err = bus.StreamRead(ctx, "market:events", msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("z"), msgs[0].Payload)

	msgs, err = bus.StreamRead(ctx, "market:events", "$", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "actor", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "actor", 3, time.Second)
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "other", 3, time.Second)
	assert.True(t, ok)

	now = now.Add(1100 * time.Millisecond)
	ok, _ = rl.Allow(ctx, "actor", 3, time.Second)
	assert.True(t, ok)
}
