package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically reclaims expired holds and expires stale bids.
type Sweeper struct {
	holds    *ReservationService
	book     *OrderBookService
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. interval defaults to 30s.
func NewSweeper(holds *ReservationService, book *OrderBookService, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		holds:    holds,
		book:     book,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sweeper started", slog.Duration("interval", s.interval))
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one reclamation pass over holds and bids. Errors are logged; the
// next pass retries whatever was skipped.
func (s *Sweeper) Sweep(ctx context.Context) {
	products, err := s.holds.ReclaimExpired(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "sweeper: reclaim expired holds failed", slog.String("error", err.Error()))
	}
	bids, err := s.book.SweepExpiredBids(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "sweeper: expire bids failed", slog.String("error", err.Error()))
	}
	if len(products) > 0 || len(bids) > 0 {
		s.logger.DebugContext(ctx, "sweeper: pass complete",
			slog.Int("holds_reclaimed", len(products)),
			slog.Int("books_swept", len(bids)),
		)
	}
}
