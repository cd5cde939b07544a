package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// ProductStore implements domain.ProductStore.
type ProductStore struct {
	s *Store
}

func cloneProduct(p domain.Product) domain.Product {
	if p.Photos != nil {
		p.Photos = append([]string(nil), p.Photos...)
	}
	return p
}

func (r *ProductStore) Create(ctx context.Context, p domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[p.ID]; ok {
		return fmt.Errorf("memory: create product %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	r.s.products[p.ID] = cloneProduct(p)
	r.s.onRollback(ctx, func() { delete(r.s.products, p.ID) })
	return nil
}

func (r *ProductStore) GetByID(_ context.Context, id string) (domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("memory: get product %s: %w", id, domain.ErrNotFound)
	}
	return cloneProduct(p), nil
}

func (r *ProductStore) Update(ctx context.Context, p domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.products[p.ID]
	if !ok {
		return fmt.Errorf("memory: update product %s: %w", p.ID, domain.ErrNotFound)
	}
	next := prev
	next.Status = p.Status
	next.HighestBid = p.HighestBid
	next.LowestAsk = p.LowestAsk
	next.BidCount = p.BidCount
	next.UpdatedAt = p.UpdatedAt
	r.s.products[p.ID] = next
	r.s.onRollback(ctx, func() { r.s.products[p.ID] = prev })
	return nil
}

func (r *ProductStore) List(_ context.Context, f domain.ProductFilter, opts domain.ListOpts) ([]domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []domain.Product
	for _, p := range r.s.products {
		if f.SellerID != "" && p.SellerID != f.SellerID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		if !inWindow(p.CreatedAt, opts) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, opts), nil
}

func (r *ProductStore) IncrementViews(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("memory: increment views %s: %w", id, domain.ErrNotFound)
	}
	p.ViewCount++
	r.s.products[id] = p
	return nil
}

var _ domain.ProductStore = (*ProductStore)(nil)
