package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// HoldStore implements domain.HoldStore.
type HoldStore struct {
	s *Store
}

func (r *HoldStore) Create(ctx context.Context, h domain.Hold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.holdByProduct[h.ProductID]; ok {
		return fmt.Errorf("memory: create hold for product %s: %w", h.ProductID, domain.ErrAlreadyExists)
	}
	r.s.holds[h.ID] = h
	r.s.holdByProduct[h.ProductID] = h.ID
	r.s.onRollback(ctx, func() {
		delete(r.s.holds, h.ID)
		delete(r.s.holdByProduct, h.ProductID)
	})
	return nil
}

func (r *HoldStore) GetByID(_ context.Context, id string) (domain.Hold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.holds[id]
	if !ok {
		return domain.Hold{}, fmt.Errorf("memory: get hold %s: %w", id, domain.ErrNotFound)
	}
	return h, nil
}

func (r *HoldStore) GetByProduct(_ context.Context, productID string) (domain.Hold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.holdByProduct[productID]
	if !ok {
		return domain.Hold{}, fmt.Errorf("memory: get hold for product %s: %w", productID, domain.ErrNotFound)
	}
	return r.s.holds[id], nil
}

func (r *HoldStore) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.holds[id]
	if !ok {
		return fmt.Errorf("memory: delete hold %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.holds, id)
	delete(r.s.holdByProduct, h.ProductID)
	r.s.onRollback(ctx, func() {
		r.s.holds[id] = h
		r.s.holdByProduct[h.ProductID] = id
	})
	return nil
}

func (r *HoldStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Hold
	for _, h := range r.s.holds {
		if h.Expired(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return paginate(out, domain.ListOpts{Limit: limit}), nil
}

func (r *HoldStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Hold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Hold
	for _, h := range r.s.holds {
		if h.BuyerID == buyerID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// BidStore implements domain.BidStore.
type BidStore struct {
	s *Store
}

func (r *BidStore) Create(ctx context.Context, b domain.Bid) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bids[b.ID]; ok {
		return fmt.Errorf("memory: create bid %s: %w", b.ID, domain.ErrAlreadyExists)
	}
	r.s.bids[b.ID] = b
	r.s.onRollback(ctx, func() { delete(r.s.bids, b.ID) })
	return nil
}

func (r *BidStore) GetByID(_ context.Context, id string) (domain.Bid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bids[id]
	if !ok {
		return domain.Bid{}, fmt.Errorf("memory: get bid %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (r *BidStore) UpdateStatus(ctx context.Context, id string, status domain.BidStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.bids[id]
	if !ok {
		return fmt.Errorf("memory: update bid %s: %w", id, domain.ErrNotFound)
	}
	next := prev
	next.Status = status
	next.UpdatedAt = at
	r.s.bids[id] = next
	r.s.onRollback(ctx, func() { r.s.bids[id] = prev })
	return nil
}

func (r *BidStore) ListActiveByProduct(_ context.Context, productID string) ([]domain.Bid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Bid
	for _, b := range r.s.bids {
		if b.ProductID == productID && b.Status == domain.BidStatusActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *BidStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Bid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Bid
	for _, b := range r.s.bids {
		if b.Status == domain.BidStatusActive && b.Expired(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return paginate(out, domain.ListOpts{Limit: limit}), nil
}

func (r *BidStore) ListByBuyer(_ context.Context, buyerID string, opts domain.ListOpts) ([]domain.Bid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Bid
	for _, b := range r.s.bids {
		if b.BuyerID == buyerID && inWindow(b.CreatedAt, opts) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

// AskStore implements domain.AskStore.
type AskStore struct {
	s *Store
}

func (r *AskStore) Create(ctx context.Context, a domain.Ask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.asks[a.ID]; ok {
		return fmt.Errorf("memory: create ask %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	r.s.asks[a.ID] = a
	r.s.onRollback(ctx, func() { delete(r.s.asks, a.ID) })
	return nil
}

func (r *AskStore) GetByID(_ context.Context, id string) (domain.Ask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.asks[id]
	if !ok {
		return domain.Ask{}, fmt.Errorf("memory: get ask %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (r *AskStore) UpdateStatus(ctx context.Context, id string, status domain.AskStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.asks[id]
	if !ok {
		return fmt.Errorf("memory: update ask %s: %w", id, domain.ErrNotFound)
	}
	next := prev
	next.Status = status
	next.UpdatedAt = at
	r.s.asks[id] = next
	r.s.onRollback(ctx, func() { r.s.asks[id] = prev })
	return nil
}

func (r *AskStore) ListActiveByProduct(_ context.Context, productID string) ([]domain.Ask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Ask
	for _, a := range r.s.asks {
		if a.ProductID == productID && a.Status == domain.AskStatusActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *AskStore) ListBySeller(_ context.Context, sellerID string, opts domain.ListOpts) ([]domain.Ask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Ask
	for _, a := range r.s.asks {
		if a.SellerID == sellerID && inWindow(a.CreatedAt, opts) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

var (
	_ domain.HoldStore = (*HoldStore)(nil)
	_ domain.BidStore  = (*BidStore)(nil)
	_ domain.AskStore  = (*AskStore)(nil)
)
