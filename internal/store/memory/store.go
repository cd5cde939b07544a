// Package memory implements the domain store interfaces in process memory.
// It backs the "memory" storage mode and the service tests. Transactions are
// undo logs carried in the context: every write inside WithTx records its
// inverse and a failed fn rolls them back in reverse order.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

type txKey struct{}

type txLog struct {
	undo []func()
}

// Store holds all records. The zero value is not usable; call New.
type Store struct {
	mu sync.RWMutex

	products      map[string]domain.Product
	holds         map[string]domain.Hold
	holdByProduct map[string]string
	bids          map[string]domain.Bid
	asks          map[string]domain.Ask
	orders        map[string]domain.Order
	prices        []domain.PricePoint
	wishlist      map[string]domain.WishlistItem
	audit         []domain.AuditEntry
	auditSeq      int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		products:      make(map[string]domain.Product),
		holds:         make(map[string]domain.Hold),
		holdByProduct: make(map[string]string),
		bids:          make(map[string]domain.Bid),
		asks:          make(map[string]domain.Ask),
		orders:        make(map[string]domain.Order),
		wishlist:      make(map[string]domain.WishlistItem),
	}
}

// Stores returns the repositories backed by s.
func (s *Store) Stores() domain.Stores {
	return domain.Stores{
		Tx:           s,
		Products:     &ProductStore{s: s},
		Holds:        &HoldStore{s: s},
		Bids:         &BidStore{s: s},
		Asks:         &AskStore{s: s},
		Orders:       &OrderStore{s: s},
		PriceHistory: &PriceHistoryStore{s: s},
		Wishlist:     &WishlistStore{s: s},
		Audit:        &AuditStore{s: s},
	}
}

// WithTx runs fn with an undo log. Nested calls join the outer log.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return fn(ctx)
	}

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// onRollback registers an inverse write. It must be called with s.mu held.
func (s *Store) onRollback(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*txLog); ok {
		log.undo = append(log.undo, undo)
	}
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

func inWindow(t time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && t.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && t.After(*opts.Until) {
		return false
	}
	return true
}

var _ domain.TxRunner = (*Store)(nil)
