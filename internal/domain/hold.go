package domain

import "time"

// DefaultHoldTTL is how long a hold reserves a product.
const DefaultHoldTTL = 24 * time.Hour

// Hold gives one buyer the exclusive right to purchase a product until
// ExpiresAt.
type Hold struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"hold_expires_at"`
}

// Expired reports whether the hold is dead at now. A hold expires at the
// exact instant of ExpiresAt.
func (h Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
