package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// OrderBookService defines the bid and ask methods the handler needs.
type OrderBookService interface {
	PlaceBid(ctx context.Context, productID, buyerID string, amount decimal.Decimal, ttl time.Duration) (domain.Bid, *domain.Order, error)
	PlaceAsk(ctx context.Context, productID, sellerID string, amount decimal.Decimal) (domain.Ask, *domain.Order, error)
	CancelBid(ctx context.Context, bidID, actorID string) error
	CancelAsk(ctx context.Context, askID, actorID string) error
}

// BookHandler serves bid and ask endpoints.
type BookHandler struct {
	book   OrderBookService
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(book OrderBookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{book: book, logger: logHandler(logger, "book")}
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
	// TTL is a Go duration string; empty uses the service default.
	TTL string `json:"ttl"`
}

type placeBidResponse struct {
	Bid   domain.Bid    `json:"bid"`
	Order *domain.Order `json:"order"`
}

// PlaceBid posts a bid for the caller. The response carries the order when
// the bid crossed a resting ask.
// POST /api/products/{id}/bids
func (h *BookHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	buyer, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req placeBidRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var ttl time.Duration
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ttl %q", req.TTL))
			return
		}
		ttl = d
	}

	bid, order, err := h.book.PlaceBid(r.Context(), pathParam(r, "id"), buyer, req.Amount, ttl)
	if err != nil {
		writeServiceError(w, r, h.logger, "place bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, placeBidResponse{Bid: bid, Order: order})
}

type placeAskRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type placeAskResponse struct {
	Ask   domain.Ask    `json:"ask"`
	Order *domain.Order `json:"order"`
}

// PlaceAsk posts an ask on the caller's own product.
// POST /api/products/{id}/asks
func (h *BookHandler) PlaceAsk(w http.ResponseWriter, r *http.Request) {
	seller, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req placeAskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ask, order, err := h.book.PlaceAsk(r.Context(), pathParam(r, "id"), seller, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "place ask", err)
		return
	}
	writeJSON(w, http.StatusCreated, placeAskResponse{Ask: ask, Order: order})
}

// CancelBid withdraws the caller's active bid.
// DELETE /api/bids/{id}
func (h *BookHandler) CancelBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if err := h.book.CancelBid(r.Context(), id, actor); err != nil {
		writeServiceError(w, r, h.logger, "cancel bid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "bid_id": id})
}

// CancelAsk withdraws the caller's active ask.
// DELETE /api/asks/{id}
func (h *BookHandler) CancelAsk(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	if err := h.book.CancelAsk(r.Context(), id, actor); err != nil {
		writeServiceError(w, r, h.logger, "cancel ask", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "ask_id": id})
}
