package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// ReservationService defines the hold lifecycle methods the handler needs.
type ReservationService interface {
	PlaceHold(ctx context.Context, productID, buyerID string) (domain.Hold, error)
	CancelHold(ctx context.Context, holdID, actorID string) error
	ConvertHoldToOrder(ctx context.Context, holdID, actorID string) (domain.Order, error)
}

// HoldHandler serves hold endpoints.
type HoldHandler struct {
	holds  ReservationService
	logger *slog.Logger
}

// NewHoldHandler creates a HoldHandler.
func NewHoldHandler(holds ReservationService, logger *slog.Logger) *HoldHandler {
	return &HoldHandler{holds: holds, logger: logHandler(logger, "hold")}
}

// PlaceHold reserves a product for the caller.
// POST /api/products/{id}/holds
func (h *HoldHandler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	buyer, ok := requireActor(w, r)
	if !ok {
		return
	}
	hold, err := h.holds.PlaceHold(r.Context(), pathParam(r, "id"), buyer)
	if err != nil {
		writeServiceError(w, r, h.logger, "place hold", err)
		return
	}
	writeJSON(w, http.StatusCreated, hold)
}

// CancelHold releases the caller's hold.
// DELETE /api/holds/{id}
func (h *HoldHandler) CancelHold(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if err := h.holds.CancelHold(r.Context(), id, actor); err != nil {
		writeServiceError(w, r, h.logger, "cancel hold", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "hold_id": id})
}

// ConvertHold buys the held product at its list price.
// POST /api/holds/{id}/convert
func (h *HoldHandler) ConvertHold(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	order, err := h.holds.ConvertHoldToOrder(r.Context(), pathParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, r, h.logger, "convert hold", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
