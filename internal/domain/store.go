package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TxRunner runs fn inside a storage transaction carried by the context.
// Nested calls join the outer transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductStore persists products.
type ProductStore interface {
	Create(ctx context.Context, p Product) error
	GetByID(ctx context.Context, id string) (Product, error)
	// Update writes status, the derived order book fields and updated_at.
	Update(ctx context.Context, p Product) error
	List(ctx context.Context, filter ProductFilter, opts ListOpts) ([]Product, error)
	IncrementViews(ctx context.Context, id string) error
}

// HoldStore persists holds. A product has at most one stored hold.
type HoldStore interface {
	Create(ctx context.Context, h Hold) error
	GetByID(ctx context.Context, id string) (Hold, error)
	GetByProduct(ctx context.Context, productID string) (Hold, error)
	Delete(ctx context.Context, id string) error
	// ListExpired returns holds with expires_at <= now, oldest first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Hold, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Hold, error)
}

// BidStore persists bids.
type BidStore interface {
	Create(ctx context.Context, b Bid) error
	GetByID(ctx context.Context, id string) (Bid, error)
	UpdateStatus(ctx context.Context, id string, status BidStatus, at time.Time) error
	ListActiveByProduct(ctx context.Context, productID string) ([]Bid, error)
	// ListExpired returns active bids with expires_at <= now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Bid, error)
	ListByBuyer(ctx context.Context, buyerID string, opts ListOpts) ([]Bid, error)
}

// AskStore persists asks.
type AskStore interface {
	Create(ctx context.Context, a Ask) error
	GetByID(ctx context.Context, id string) (Ask, error)
	UpdateStatus(ctx context.Context, id string, status AskStatus, at time.Time) error
	ListActiveByProduct(ctx context.Context, productID string) ([]Ask, error)
	ListBySeller(ctx context.Context, sellerID string, opts ListOpts) ([]Ask, error)
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus, at time.Time) error
	ListByProduct(ctx context.Context, productID string) ([]Order, error)
	ListByBuyer(ctx context.Context, buyerID string, opts ListOpts) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string, opts ListOpts) ([]Order, error)
	// ListSettledBefore returns completed or cancelled orders last updated
	// strictly before the cutoff.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Order, error)
}

// PriceHistoryStore persists sale prices.
type PriceHistoryStore interface {
	Record(ctx context.Context, p PricePoint) error
	ListByProduct(ctx context.Context, productID string) ([]PricePoint, error)
	ListBefore(ctx context.Context, before time.Time) ([]PricePoint, error)
}

// WishlistStore persists wishlist entries.
type WishlistStore interface {
	Add(ctx context.Context, item WishlistItem) error
	Remove(ctx context.Context, userID, productID string) error
	ListByUser(ctx context.Context, userID string) ([]WishlistItem, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Stores bundles every repository of one storage backend.
type Stores struct {
	Tx           TxRunner
	Products     ProductStore
	Holds        HoldStore
	Bids         BidStore
	Asks         AskStore
	Orders       OrderStore
	PriceHistory PriceHistoryStore
	Wishlist     WishlistStore
	Audit        AuditStore
}
