package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// OrderStore implements domain.OrderStore.
type OrderStore struct {
	s *Store
}

func (r *OrderStore) Create(ctx context.Context, o domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[o.ID]; ok {
		return fmt.Errorf("memory: create order %s: %w", o.ID, domain.ErrAlreadyExists)
	}
	if o.Status == domain.OrderStatusCompleted {
		for _, existing := range r.s.orders {
			if existing.ProductID == o.ProductID && existing.Status == domain.OrderStatusCompleted {
				return fmt.Errorf("memory: create order %s: product %s already sold: %w", o.ID, o.ProductID, domain.ErrAlreadyExists)
			}
		}
	}
	r.s.orders[o.ID] = o
	r.s.onRollback(ctx, func() { delete(r.s.orders, o.ID) })
	return nil
}

func (r *OrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("memory: get order %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

func (r *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.orders[id]
	if !ok {
		return fmt.Errorf("memory: update order %s: %w", id, domain.ErrNotFound)
	}
	next := prev
	next.Status = status
	next.UpdatedAt = at
	r.s.orders[id] = next
	r.s.onRollback(ctx, func() { r.s.orders[id] = prev })
	return nil
}

func (r *OrderStore) ListByProduct(_ context.Context, productID string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.ProductID == productID }, domain.ListOpts{}), nil
}

func (r *OrderStore) ListByBuyer(_ context.Context, buyerID string, opts domain.ListOpts) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.BuyerID == buyerID }, opts), nil
}

func (r *OrderStore) ListBySeller(_ context.Context, sellerID string, opts domain.ListOpts) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.SellerID == sellerID }, opts), nil
}

func (r *OrderStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Order, error) {
	out := r.filter(func(o domain.Order) bool {
		return o.Terminal() && o.UpdatedAt.Before(before)
	}, domain.ListOpts{})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// filter returns matching orders newest first.
func (r *OrderStore) filter(keep func(domain.Order) bool, opts domain.ListOpts) []domain.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Order
	for _, o := range r.s.orders {
		if keep(o) && inWindow(o.CreatedAt, opts) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, opts)
}

// PriceHistoryStore implements domain.PriceHistoryStore.
type PriceHistoryStore struct {
	s *Store
}

func (r *PriceHistoryStore) Record(ctx context.Context, p domain.PricePoint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.prices = append(r.s.prices, p)
	r.s.onRollback(ctx, func() { r.s.prices = removePrice(r.s.prices, p.ID) })
	return nil
}

// removePrice drops the point with id. Other transactions may have appended
// after it, so it is located by id rather than by position.
func removePrice(points []domain.PricePoint, id string) []domain.PricePoint {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].ID == id {
			return append(points[:i], points[i+1:]...)
		}
	}
	return points
}

func (r *PriceHistoryStore) ListByProduct(_ context.Context, productID string) ([]domain.PricePoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.PricePoint
	for _, p := range r.s.prices {
		if p.ProductID == productID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.Before(out[j].SaleDate) })
	return out, nil
}

func (r *PriceHistoryStore) ListBefore(_ context.Context, before time.Time) ([]domain.PricePoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.PricePoint
	for _, p := range r.s.prices {
		if p.SaleDate.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

// WishlistStore implements domain.WishlistStore.
type WishlistStore struct {
	s *Store
}

func wishlistKey(userID, productID string) string {
	return userID + "|" + productID
}

func (r *WishlistStore) Add(_ context.Context, item domain.WishlistItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := wishlistKey(item.UserID, item.ProductID)
	if _, ok := r.s.wishlist[key]; ok {
		return nil
	}
	r.s.wishlist[key] = item
	return nil
}

func (r *WishlistStore) Remove(_ context.Context, userID, productID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := wishlistKey(userID, productID)
	if _, ok := r.s.wishlist[key]; !ok {
		return fmt.Errorf("memory: remove wishlist %s: %w", key, domain.ErrNotFound)
	}
	delete(r.s.wishlist, key)
	return nil
}

func (r *WishlistStore) ListByUser(_ context.Context, userID string) ([]domain.WishlistItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.WishlistItem
	for _, item := range r.s.wishlist {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	s *Store
}

func (r *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.auditSeq++
	r.s.audit = append(r.s.audit, domain.AuditEntry{
		ID:        r.s.auditSeq,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (r *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, len(r.s.audit))
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if e := r.s.audit[i]; inWindow(e.CreatedAt, opts) {
			out = append(out, e)
		}
	}
	return paginate(out, opts), nil
}

var (
	_ domain.OrderStore        = (*OrderStore)(nil)
	_ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)
	_ domain.WishlistStore     = (*WishlistStore)(nil)
	_ domain.AuditStore        = (*AuditStore)(nil)
)
