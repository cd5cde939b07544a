package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/lock"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLockManagerAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("second holder is refused", func(t *testing.T) {
		c, mr := newTestClient(t)
		lm := NewLockManager(c, discardLogger())

		release, err := lm.Acquire(ctx, "product:p1", time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("lock:product:p1"))

		_, err = lm.Acquire(ctx, "product:p1", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockHeld)

		release()
		release()
		assert.False(t, mr.Exists("lock:product:p1"))

		again, err := lm.Acquire(ctx, "product:p1", time.Minute)
		require.NoError(t, err)
		again()
	})

	t.Run("stale holder does not release a newer lease", func(t *testing.T) {
		c, mr := newTestClient(t)
		lm := NewLockManager(c, discardLogger())

		stale, err := lm.Acquire(ctx, "product:p1", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)
		require.False(t, mr.Exists("lock:product:p1"), "lease expired")

		current, err := lm.Acquire(ctx, "product:p1", time.Minute)
		require.NoError(t, err)

		stale()
		assert.True(t, mr.Exists("lock:product:p1"), "stale token leaves the new lease alone")
		_, err = lm.Acquire(ctx, "product:p1", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockHeld)

		current()
		assert.False(t, mr.Exists("lock:product:p1"))
	})
}

func TestLayeredLockAcrossInstances(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	// two processes sharing one Redis, each with its own local lock table
	first := lock.NewLayered(NewLockManager(c, discardLogger()), discardLogger(), lock.WithWait(50*time.Millisecond))
	second := lock.NewLayered(NewLockManager(c, discardLogger()), discardLogger(), lock.WithWait(50*time.Millisecond))

	unlock, err := first.Lock(ctx, "p1")
	require.NoError(t, err)

	_, err = second.Lock(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	other, err := second.Lock(ctx, "p2")
	require.NoError(t, err, "other products are not blocked")
	other()

	unlock()
	unlock2, err := second.Lock(ctx, "p1")
	require.NoError(t, err)
	unlock2()
}

func TestSignalBusPatternSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	sb := NewSignalBus(c, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := sb.Subscribe(ctx, "product:*")
	require.NoError(t, err)
	exact, err := sb.Subscribe(ctx, domain.ProductChannel("p2"))
	require.NoError(t, err)

	require.NoError(t, sb.Publish(ctx, "market:other", []byte("ignored")))
	require.NoError(t, sb.Publish(ctx, domain.ProductChannel("p1"), []byte("one")))
	require.NoError(t, sb.Publish(ctx, domain.ProductChannel("p2"), []byte("two")))

	receive := func(ch <-chan []byte) string {
		select {
		case msg := <-ch:
			return string(msg)
		case <-time.After(2 * time.Second):
			t.Fatal("no message received")
			return ""
		}
	}
	assert.Equal(t, "one", receive(ch))
	assert.Equal(t, "two", receive(ch))
	assert.Equal(t, "two", receive(exact))

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalBusStream(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	sb := NewSignalBus(c, 100)

	msgs, err := sb.StreamRead(ctx, domain.MarketStream, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, sb.StreamAppend(ctx, domain.MarketStream, []byte(`{"type":"bid_placed"}`)))
	require.NoError(t, sb.StreamAppend(ctx, domain.MarketStream, []byte(`{"type":"ask_placed"}`)))

	msgs, err = sb.StreamRead(ctx, domain.MarketStream, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"type":"bid_placed"}`, string(msgs[0].Payload))

	rest, err := sb.StreamRead(ctx, domain.MarketStream, msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, msgs[1].ID, rest[0].ID)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "actor:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := rl.Allow(ctx, "actor:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth request exceeds the window budget")

	ok, err = rl.Allow(ctx, "actor:u2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "budgets are per key")

	ok, err = rl.Allow(ctx, "actor:u3", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(40 * time.Millisecond)
	ok, err = rl.Allow(ctx, "actor:u3", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "old requests slide out of the window")
}
