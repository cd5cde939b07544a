package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// SettlementService defines the order methods the handler needs.
type SettlementService interface {
	CompleteOrder(ctx context.Context, orderID, actorID string) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID, actorID string) (domain.Order, error)
	Order(ctx context.Context, orderID, actorID string) (domain.Order, error)
}

// OrderHandler serves order endpoints.
type OrderHandler struct {
	orders SettlementService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders SettlementService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logHandler(logger, "order")}
}

// GetOrder returns an order the caller is party to.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "get order", http.StatusOK, h.orders.Order)
}

// CompleteOrder is the seller confirming a matched sale.
// POST /api/orders/{id}/complete
func (h *OrderHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "complete order", http.StatusOK, h.orders.CompleteOrder)
}

// CancelOrder lets either party drop a pending order.
// POST /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "cancel order", http.StatusOK, h.orders.CancelOrder)
}

func (h *OrderHandler) run(w http.ResponseWriter, r *http.Request, op string, status int,
	fn func(ctx context.Context, orderID, actorID string) (domain.Order, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	o, err := fn(r.Context(), pathParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, status, o)
}
