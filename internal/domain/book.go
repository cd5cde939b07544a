package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus tracks the bid lifecycle.
type BidStatus string

const (
	BidStatusActive    BidStatus = "active"
	BidStatusExpired   BidStatus = "expired"
	BidStatusMatched   BidStatus = "matched"
	BidStatusCancelled BidStatus = "cancelled"
)

// AskStatus tracks the ask lifecycle. Asks carry no TTL.
type AskStatus string

const (
	AskStatusActive    AskStatus = "active"
	AskStatusMatched   AskStatus = "matched"
	AskStatusCancelled AskStatus = "cancelled"
)

// Bid is a buyer's offer on a product.
type Bid struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	BuyerID   string          `json:"buyer_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    BidStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Expired reports whether the bid's TTL has elapsed at now.
func (b Bid) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// Ask is a seller's offer on their own product.
type Ask struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    AskStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BookView is the live order book for a product, best prices first.
type BookView struct {
	ProductID string `json:"product_id"`
	Bids      []Bid  `json:"bids"`
	Asks      []Ask  `json:"asks"`
	Quote     Quote  `json:"quote"`
}
