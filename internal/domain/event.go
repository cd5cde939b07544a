package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a market event published after a committed mutation.
type EventType string

const (
	EventProductListed  EventType = "product_listed"
	EventHoldPlaced     EventType = "hold_placed"
	EventHoldCancelled  EventType = "hold_cancelled"
	EventHoldConverted  EventType = "hold_converted"
	EventHoldExpired    EventType = "hold_expired"
	EventBidPlaced      EventType = "bid_placed"
	EventBidCancelled   EventType = "bid_cancelled"
	EventBidExpired     EventType = "bid_expired"
	EventAskPlaced      EventType = "ask_placed"
	EventAskCancelled   EventType = "ask_cancelled"
	EventOrderMatched   EventType = "order_matched"
	EventOrderCompleted EventType = "order_completed"
	EventOrderCancelled EventType = "order_cancelled"
)

// MarketStream is the durable stream every event is appended to.
const MarketStream = "market:events"

// ProductChannel returns the pub/sub channel for a product's events.
func ProductChannel(productID string) string {
	return "product:" + productID
}

// Event is the JSON envelope published on the signal bus.
type Event struct {
	Type      EventType        `json:"type"`
	ProductID string           `json:"product_id"`
	ActorID   string           `json:"actor_id,omitempty"`
	EntityID  string           `json:"entity_id,omitempty"`
	Status    ProductStatus    `json:"status,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Quote     *Quote           `json:"quote,omitempty"`
	Order     *Order           `json:"order,omitempty"`
	At        time.Time        `json:"at"`
}
