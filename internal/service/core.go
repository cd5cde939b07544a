package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/collectibles/internal/clock"
	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/lock"
	"github.com/alanyoungcy/collectibles/internal/matching"
)

// Core bundles the collaborators every product-mutating service needs.
type Core struct {
	Stores domain.Stores
	Locks  lock.Locker
	Clock  clock.Clock
	Events *Publisher
	Logger *slog.Logger
}

// mutation is the body of a critical section. It runs inside one storage
// transaction while the product lock is held and returns the events to
// publish once the transaction has committed.
type mutation func(ctx context.Context, now time.Time) ([]domain.Event, error)

// mutate runs fn under the product lock and a transaction, then publishes
// its events after both are released.
func (c Core) mutate(ctx context.Context, productID string, fn mutation) error {
	events, err := c.critical(ctx, productID, fn)
	if err != nil {
		return err
	}
	c.Events.Publish(ctx, events...)
	return nil
}

func (c Core) critical(ctx context.Context, productID string, fn mutation) ([]domain.Event, error) {
	unlock, err := c.Locks.Lock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lock product %s: %w", productID, err)
	}
	defer unlock()

	var events []domain.Event
	err = c.Stores.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		events, err = fn(ctx, c.Clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// reclaimHold removes the product's stored hold when it has expired at now
// and puts an on_hold product back to available. The returned event is nil
// when nothing was reclaimed. The caller persists p.
func (c Core) reclaimHold(ctx context.Context, p *domain.Product, now time.Time) (*domain.Event, error) {
	h, err := c.Stores.Holds.GetByProduct(ctx, p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get hold: %w", err)
	}
	if !h.Expired(now) {
		return nil, nil
	}
	if err := c.Stores.Holds.Delete(ctx, h.ID); err != nil {
		return nil, fmt.Errorf("delete expired hold %s: %w", h.ID, err)
	}
	if p.Status == domain.ProductStatusOnHold {
		p.Status = domain.ProductStatusAvailable
	}
	p.UpdatedAt = now
	return &domain.Event{
		Type:      domain.EventHoldExpired,
		ProductID: p.ID,
		ActorID:   h.BuyerID,
		EntityID:  h.ID,
		Status:    p.Status,
		At:        now,
	}, nil
}

// expireBids marks the product's active bids whose TTL has elapsed.
func (c Core) expireBids(ctx context.Context, productID string, now time.Time) ([]domain.Event, error) {
	bids, err := c.Stores.Bids.ListActiveByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list active bids: %w", err)
	}
	var events []domain.Event
	for _, b := range bids {
		if !b.Expired(now) {
			continue
		}
		if err := c.Stores.Bids.UpdateStatus(ctx, b.ID, domain.BidStatusExpired, now); err != nil {
			return nil, fmt.Errorf("expire bid %s: %w", b.ID, err)
		}
		amt := b.Amount
		events = append(events, domain.Event{
			Type:      domain.EventBidExpired,
			ProductID: productID,
			ActorID:   b.BuyerID,
			EntityID:  b.ID,
			Amount:    &amt,
			At:        now,
		})
	}
	return events, nil
}

// book reads the authoritative active sets of a product.
func (c Core) book(ctx context.Context, productID string) ([]domain.Bid, []domain.Ask, error) {
	bids, err := c.Stores.Bids.ListActiveByProduct(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("list active bids: %w", err)
	}
	asks, err := c.Stores.Asks.ListActiveByProduct(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("list active asks: %w", err)
	}
	return bids, asks, nil
}

// requote recomputes the derived fields from the active sets and persists p.
func (c Core) requote(ctx context.Context, p *domain.Product, now time.Time) error {
	bids, asks, err := c.book(ctx, p.ID)
	if err != nil {
		return err
	}
	p.ApplyQuote(matching.Quote(bids, asks))
	p.UpdatedAt = now
	if err := c.Stores.Products.Update(ctx, *p); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// finalizeSale moves p to sold once order has completed: the
// rest of the book and every other pending order are cancelled, the quote is
// cleared and the sale price is recorded.
func (c Core) finalizeSale(ctx context.Context, p *domain.Product, order domain.Order, now time.Time) ([]domain.Event, error) {
	bids, asks, err := c.book(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range bids {
		if err := c.Stores.Bids.UpdateStatus(ctx, b.ID, domain.BidStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("cancel bid %s: %w", b.ID, err)
		}
	}
	for _, a := range asks {
		if err := c.Stores.Asks.UpdateStatus(ctx, a.ID, domain.AskStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("cancel ask %s: %w", a.ID, err)
		}
	}

	orders, err := c.Stores.Orders.ListByProduct(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var events []domain.Event
	for _, o := range orders {
		if o.ID == order.ID || o.Status != domain.OrderStatusPending {
			continue
		}
		if err := c.Stores.Orders.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("cancel order %s: %w", o.ID, err)
		}
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = now
		events = append(events, orderEvent(domain.EventOrderCancelled, o, "", now))
	}

	if err := c.Stores.PriceHistory.Record(ctx, domain.PricePoint{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		Price:     order.Amount,
		SaleDate:  now,
	}); err != nil {
		return nil, fmt.Errorf("record price: %w", err)
	}

	p.Status = domain.ProductStatusSold
	p.ApplyQuote(domain.Quote{})
	p.UpdatedAt = now
	if err := c.Stores.Products.Update(ctx, *p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return events, nil
}

func orderEvent(t domain.EventType, o domain.Order, actor string, now time.Time) domain.Event {
	amt := o.Amount
	return domain.Event{
		Type:      t,
		ProductID: o.ProductID,
		ActorID:   actor,
		EntityID:  o.ID,
		Amount:    &amt,
		Order:     &o,
		At:        now,
	}
}

func productEvent(t domain.EventType, p domain.Product, actor, entityID string, now time.Time) domain.Event {
	q := domain.Quote{HighestBid: p.HighestBid, LowestAsk: p.LowestAsk, BidCount: p.BidCount}
	return domain.Event{
		Type:      t,
		ProductID: p.ID,
		ActorID:   actor,
		EntityID:  entityID,
		Status:    p.Status,
		Quote:     &q,
		At:        now,
	}
}

// dedupe returns the distinct product ids of xs in first-seen order.
// reclaimExpiredHolds releases up to limit expired holds, one critical
// section per product, and returns the products made available again. A
// product that fails is logged and left for the next pass.
func (c Core) reclaimExpiredHolds(ctx context.Context, limit int, logger *slog.Logger) ([]string, error) {
	expired, err := c.Stores.Holds.ListExpired(ctx, c.Clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}

	var reclaimed []string
	for _, productID := range dedupe(expired, func(h domain.Hold) string { return h.ProductID }) {
		if ctx.Err() != nil {
			return reclaimed, ctx.Err()
		}

		var released bool
		err := c.mutate(ctx, productID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
			p, err := c.Stores.Products.GetByID(ctx, productID)
			if err != nil {
				return nil, err
			}
			evt, err := c.reclaimHold(ctx, &p, now)
			if err != nil || evt == nil {
				return nil, err
			}
			if err := c.Stores.Products.Update(ctx, p); err != nil {
				return nil, fmt.Errorf("update product: %w", err)
			}
			released = true
			return []domain.Event{*evt}, nil
		})
		if err != nil {
			logger.WarnContext(ctx, "reclaim failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if released {
			reclaimed = append(reclaimed, productID)
		}
	}
	return reclaimed, nil
}

func dedupe[T any](xs []T, productID func(T) string) []string {
	seen := make(map[string]struct{}, len(xs))
	var out []string
	for _, x := range xs {
		id := productID(x)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
