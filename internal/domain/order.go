package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks the order lifecycle. Completed and cancelled are
// terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderSource records how an order came to exist.
type OrderSource string

const (
	OrderSourceHold  OrderSource = "hold"
	OrderSourceMatch OrderSource = "match"
)

// Order is a purchase of a product by a buyer from its seller.
type Order struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	BuyerID   string          `json:"buyer_id"`
	SellerID  string          `json:"seller_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    OrderStatus     `json:"status"`
	Source    OrderSource     `json:"source"`
	BidID     string          `json:"bid_id,omitempty"`
	AskID     string          `json:"ask_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Terminal reports whether the order can no longer change.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// PricePoint is one historical sale price of a product.
type PricePoint struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	SaleDate  time.Time       `json:"sale_date"`
}

// WishlistItem marks a product a user is watching.
type WishlistItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
