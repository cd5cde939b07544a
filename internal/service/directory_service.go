package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// BuyerDashboard is what a buyer sees about their own activity.
type BuyerDashboard struct {
	Holds  []domain.Hold  `json:"holds"`
	Bids   []domain.Bid   `json:"bids"`
	Orders []domain.Order `json:"orders"`
}

// SellerDashboard is what a seller sees about their listings.
type SellerDashboard struct {
	Products []domain.Product `json:"products"`
	Asks     []domain.Ask     `json:"asks"`
	Sales    []domain.Order   `json:"sales"`
}

// marketplaceReclaimBatch bounds the expired holds a marketplace read
// releases before listing. Anything beyond it waits for the sweeper.
const marketplaceReclaimBatch = 100

// DirectoryService serves product listings and read models. Reads of a single
// product settle expired holds and bids on the way.
type DirectoryService struct {
	core   Core
	logger *slog.Logger
}

// NewDirectoryService creates a DirectoryService.
func NewDirectoryService(core Core) *DirectoryService {
	return &DirectoryService{
		core:   core,
		logger: core.Logger.With(slog.String("component", "directory_service")),
	}
}

// ListProduct creates an available listing owned by seller.
func (s *DirectoryService) ListProduct(ctx context.Context, sellerID string, in domain.NewProduct) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, fmt.Errorf("directory_service: list product: %w", err)
	}

	now := s.core.Clock.Now()
	p := domain.Product{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Condition:   strings.TrimSpace(in.Condition),
		Rarity:      in.Rarity,
		Photos:      in.Photos,
		Price:       in.Price,
		Status:      domain.ProductStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.core.Stores.Products.Create(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("directory_service: create product: %w", err)
	}

	evt := productEvent(domain.EventProductListed, p, sellerID, p.ID, now)
	evt.Amount = &p.Price
	s.core.Events.Publish(ctx, evt)

	s.logger.InfoContext(ctx, "directory_service: product listed",
		slog.String("product_id", p.ID),
		slog.String("seller_id", sellerID),
		slog.String("category", p.Category),
	)
	return p, nil
}

// GetProduct returns a product after reclaiming an expired hold and expiring
// stale bids, and counts the view.
func (s *DirectoryService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := s.core.mutate(ctx, id, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		var err error
		p, err = s.core.Stores.Products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		var events []domain.Event
		reclaimed, err := s.core.reclaimHold(ctx, &p, now)
		if err != nil {
			return nil, err
		}
		if reclaimed != nil {
			events = append(events, *reclaimed)
		}
		expired, err := s.core.expireBids(ctx, id, now)
		if err != nil {
			return nil, err
		}
		events = append(events, expired...)

		if len(events) > 0 {
			if err := s.core.requote(ctx, &p, now); err != nil {
				return nil, err
			}
		}
		if err := s.core.Stores.Products.IncrementViews(ctx, id); err != nil {
			return nil, fmt.Errorf("increment views: %w", err)
		}
		p.ViewCount++
		return events, nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("directory_service: get product %s: %w", id, err)
	}
	return p, nil
}

// Marketplace lists available products, newest first. filter.Status is
// ignored. Expired holds are released before the listing is read, up to
// marketplaceReclaimBatch per call.
func (s *DirectoryService) Marketplace(ctx context.Context, filter domain.ProductFilter, opts domain.ListOpts) ([]domain.Product, error) {
	if _, err := s.core.reclaimExpiredHolds(ctx, marketplaceReclaimBatch, s.logger); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("directory_service: marketplace: %w", err)
		}
		s.logger.WarnContext(ctx, "directory_service: marketplace reclaim skipped", slog.String("error", err.Error()))
	}

	filter.Status = domain.ProductStatusAvailable
	products, err := s.core.Stores.Products.List(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("directory_service: marketplace: %w", err)
	}
	return products, nil
}

// ProductsBySeller lists every product of a seller regardless of status.
func (s *DirectoryService) ProductsBySeller(ctx context.Context, sellerID string, opts domain.ListOpts) ([]domain.Product, error) {
	products, err := s.core.Stores.Products.List(ctx, domain.ProductFilter{SellerID: sellerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("directory_service: products for %s: %w", sellerID, err)
	}
	return products, nil
}

// PriceHistory returns the recorded sale prices of a product, oldest first.
func (s *DirectoryService) PriceHistory(ctx context.Context, productID string) ([]domain.PricePoint, error) {
	if _, err := s.core.Stores.Products.GetByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("directory_service: price history for %s: %w", productID, err)
	}
	points, err := s.core.Stores.PriceHistory.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("directory_service: price history for %s: %w", productID, err)
	}
	return points, nil
}

// BuyerDashboard collects the buyer's live holds, bids and purchases.
func (s *DirectoryService) BuyerDashboard(ctx context.Context, buyerID string, opts domain.ListOpts) (BuyerDashboard, error) {
	holds, err := s.core.Stores.Holds.ListByBuyer(ctx, buyerID)
	if err != nil {
		return BuyerDashboard{}, fmt.Errorf("directory_service: holds for %s: %w", buyerID, err)
	}
	bids, err := s.core.Stores.Bids.ListByBuyer(ctx, buyerID, opts)
	if err != nil {
		return BuyerDashboard{}, fmt.Errorf("directory_service: bids for %s: %w", buyerID, err)
	}
	orders, err := s.core.Stores.Orders.ListByBuyer(ctx, buyerID, opts)
	if err != nil {
		return BuyerDashboard{}, fmt.Errorf("directory_service: orders for %s: %w", buyerID, err)
	}

	now := s.core.Clock.Now()
	d := BuyerDashboard{
		Holds:  []domain.Hold{},
		Bids:   bids,
		Orders: orders,
	}
	for _, h := range holds {
		if !h.Expired(now) {
			d.Holds = append(d.Holds, h)
		}
	}
	return d, nil
}

// SellerDashboard collects the seller's listings, asks and sales.
func (s *DirectoryService) SellerDashboard(ctx context.Context, sellerID string, opts domain.ListOpts) (SellerDashboard, error) {
	products, err := s.ProductsBySeller(ctx, sellerID, opts)
	if err != nil {
		return SellerDashboard{}, err
	}
	asks, err := s.core.Stores.Asks.ListBySeller(ctx, sellerID, opts)
	if err != nil {
		return SellerDashboard{}, fmt.Errorf("directory_service: asks for %s: %w", sellerID, err)
	}
	sales, err := s.core.Stores.Orders.ListBySeller(ctx, sellerID, opts)
	if err != nil {
		return SellerDashboard{}, fmt.Errorf("directory_service: sales for %s: %w", sellerID, err)
	}
	return SellerDashboard{Products: products, Asks: asks, Sales: sales}, nil
}

// AddToWishlist marks a product as watched by user. Adding it again is a
// no-op.
func (s *DirectoryService) AddToWishlist(ctx context.Context, userID, productID string) error {
	if _, err := s.core.Stores.Products.GetByID(ctx, productID); err != nil {
		return fmt.Errorf("directory_service: wishlist add %s: %w", productID, err)
	}
	err := s.core.Stores.Wishlist.Add(ctx, domain.WishlistItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: s.core.Clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("directory_service: wishlist add %s: %w", productID, err)
	}
	return nil
}

// RemoveFromWishlist drops a watched product.
func (s *DirectoryService) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	if err := s.core.Stores.Wishlist.Remove(ctx, userID, productID); err != nil {
		return fmt.Errorf("directory_service: wishlist remove %s: %w", productID, err)
	}
	return nil
}

// Wishlist returns the products a user watches, newest first.
func (s *DirectoryService) Wishlist(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	items, err := s.core.Stores.Wishlist.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("directory_service: wishlist for %s: %w", userID, err)
	}
	return items, nil
}
