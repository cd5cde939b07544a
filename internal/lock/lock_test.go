package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

func TestKeyedSerialisesSameKey(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "p1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.size())
}

func TestKeyedDifferentKeysDoNotContend(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := k.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyedHonoursContext(t *testing.T) {
	k := NewKeyed()
	unlock, err := k.Lock(context.Background(), "p1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, k.size())
}

type fakeRemote struct {
	mu       sync.Mutex
	held     map[string]bool
	failWith error
}

func (f *fakeRemote) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		delete(f.held, key)
		f.mu.Unlock()
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLayered(t *testing.T) {
	ctx := context.Background()

	t.Run("takes and releases remote lock", func(t *testing.T) {
		remote := &fakeRemote{held: map[string]bool{}}
		l := NewLayered(remote, discardLogger())

		unlock, err := l.Lock(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, remote.held["product:p1"])
		unlock()
		assert.False(t, remote.held["product:p1"])
	})

	t.Run("times out while another instance holds the key", func(t *testing.T) {
		remote := &fakeRemote{held: map[string]bool{"product:p1": true}}
		l := NewLayered(remote, discardLogger(), WithWait(30*time.Millisecond))

		_, err := l.Lock(ctx, "p1")
		assert.ErrorIs(t, err, domain.ErrLockTimeout)
		assert.Equal(t, 0, l.local.size())
	})

	t.Run("remote errors release the local lock", func(t *testing.T) {
		remote := &fakeRemote{held: map[string]bool{}, failWith: errors.New("connection refused")}
		l := NewLayered(remote, discardLogger())

		_, err := l.Lock(ctx, "p1")
		require.Error(t, err)
		assert.Equal(t, 0, l.local.size())
	})

	t.Run("nil remote is local only", func(t *testing.T) {
		l := NewLayered(nil, discardLogger())
		unlock, err := l.Lock(ctx, "p1")
		require.NoError(t, err)
		unlock()
	})
}
