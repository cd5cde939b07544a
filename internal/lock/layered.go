package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

const (
	defaultTTL     = 10 * time.Second
	defaultWait    = 5 * time.Second
	minBackoff     = 10 * time.Millisecond
	maxBackoff     = 200 * time.Millisecond
	remoteKeySpace = "product:"
)

// Layered takes the in-process Keyed lock first and then, when a remote
// LockManager is configured, a distributed lock on the same key. Holding the
// local lock first keeps goroutines of one instance from spinning against
// each other on the remote lock.
type Layered struct {
	local  *Keyed
	remote domain.LockManager
	ttl    time.Duration
	wait   time.Duration
	logger *slog.Logger
}

// Option configures a Layered lock.
type Option func(*Layered)

// WithTTL sets the lease of the distributed lock.
func WithTTL(d time.Duration) Option {
	return func(l *Layered) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithWait bounds how long Lock retries a held distributed lock.
func WithWait(d time.Duration) Option {
	return func(l *Layered) {
		if d > 0 {
			l.wait = d
		}
	}
}

// NewLayered creates a Layered lock. remote may be nil, in which case only
// the in-process lock is used.
func NewLayered(remote domain.LockManager, logger *slog.Logger, opts ...Option) *Layered {
	l := &Layered{
		local:  NewKeyed(),
		remote: remote,
		ttl:    defaultTTL,
		wait:   defaultWait,
		logger: logger.With(slog.String("component", "product_lock")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires both layers for key. It fails with domain.ErrLockTimeout when
// the distributed lock stays held past the wait budget.
func (l *Layered) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.remote == nil {
		return unlockLocal, nil
	}

	deadline := time.Now().Add(l.wait)
	backoff := minBackoff
	for {
		unlockRemote, err := l.remote.Acquire(ctx, remoteKeySpace+key, l.ttl)
		if err == nil {
			return func() {
				unlockRemote()
				unlockLocal()
			}, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			unlockLocal()
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if time.Now().After(deadline) {
			unlockLocal()
			l.logger.WarnContext(ctx, "lock: distributed lock wait exceeded",
				slog.String("key", key),
				slog.Duration("wait", l.wait),
			)
			return nil, fmt.Errorf("lock: %s: %w", key, domain.ErrLockTimeout)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			unlockLocal()
			return nil, fmt.Errorf("lock: wait for %s: %w", key, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

var _ Locker = (*Layered)(nil)
