package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the lifecycle state of a listed product.
type ProductStatus string

const (
	ProductStatusAvailable ProductStatus = "available"
	ProductStatusOnHold    ProductStatus = "on_hold"
	ProductStatusSold      ProductStatus = "sold"
)

// Product is the root aggregate. Status, HighestBid, LowestAsk and BidCount
// are derived from the hold and order book sets and are only written by the
// reservation, order book and settlement services.
type Product struct {
	ID                 string           `json:"id"`
	SellerID           string           `json:"seller_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Category           string           `json:"category"`
	Condition          string           `json:"condition"`
	Rarity             string           `json:"rarity,omitempty"`
	Photos             []string         `json:"photos,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	Status             ProductStatus    `json:"status"`
	HighestBid         *decimal.Decimal `json:"highest_bid"`
	LowestAsk          *decimal.Decimal `json:"lowest_ask"`
	BidCount           int              `json:"bid_count"`
	VerificationStatus string           `json:"verification_status,omitempty"`
	VerificationNotes  string           `json:"verification_notes,omitempty"`
	ViewCount          int64            `json:"view_count"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Sold reports whether the product has reached its terminal state.
func (p Product) Sold() bool {
	return p.Status == ProductStatusSold
}

// Quote is the derived top-of-book view of a product.
type Quote struct {
	HighestBid *decimal.Decimal `json:"highest_bid"`
	LowestAsk  *decimal.Decimal `json:"lowest_ask"`
	BidCount   int              `json:"bid_count"`
}

// ApplyQuote overwrites the derived order book fields.
func (p *Product) ApplyQuote(q Quote) {
	p.HighestBid = q.HighestBid
	p.LowestAsk = q.LowestAsk
	p.BidCount = q.BidCount
}

// NewProduct is the seller input for a listing.
type NewProduct struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Condition   string          `json:"condition"`
	Rarity      string          `json:"rarity"`
	Photos      []string        `json:"photos"`
	Price       decimal.Decimal `json:"price"`
}

// Validate checks the required listing fields. A non-positive price is
// reported as ErrInvalidAmount, anything else as ErrInvalidInput.
func (n NewProduct) Validate() error {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Category) == "" ||
		strings.TrimSpace(n.Condition) == "" {
		return ErrInvalidInput
	}
	return ValidateAmount(n.Price)
}

// ProductFilter narrows product list queries. Empty fields are ignored.
type ProductFilter struct {
	SellerID string
	Status   ProductStatus
	Category string
	Search   string // case-insensitive title substring
}
