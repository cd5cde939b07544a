package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/service"
)

// AccountService defines the per-user read models and wishlist.
type AccountService interface {
	BuyerDashboard(ctx context.Context, buyerID string, opts domain.ListOpts) (service.BuyerDashboard, error)
	SellerDashboard(ctx context.Context, sellerID string, opts domain.ListOpts) (service.SellerDashboard, error)
	Wishlist(ctx context.Context, userID string) ([]domain.WishlistItem, error)
	AddToWishlist(ctx context.Context, userID, productID string) error
	RemoveFromWishlist(ctx context.Context, userID, productID string) error
}

// MeHandler serves the caller's own dashboards and wishlist.
type MeHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewMeHandler creates a MeHandler.
func NewMeHandler(accounts AccountService, logger *slog.Logger) *MeHandler {
	return &MeHandler{accounts: accounts, logger: logHandler(logger, "me")}
}

// Dashboard returns the caller's live holds, bids and purchases.
// GET /api/me/dashboard
func (h *MeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.accounts.BuyerDashboard(r.Context(), actor, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "buyer dashboard", err)
		return
	}
	d.Holds, d.Bids, d.Orders = nonNil(d.Holds), nonNil(d.Bids), nonNil(d.Orders)
	writeJSON(w, http.StatusOK, d)
}

// Listings returns the caller's products, asks and sales.
// GET /api/me/listings
func (h *MeHandler) Listings(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.accounts.SellerDashboard(r.Context(), actor, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "seller dashboard", err)
		return
	}
	d.Products, d.Asks, d.Sales = nonNil(d.Products), nonNil(d.Asks), nonNil(d.Sales)
	writeJSON(w, http.StatusOK, d)
}

type wishlistResponse struct {
	Items []domain.WishlistItem `json:"items"`
}

// Wishlist returns the products the caller watches.
// GET /api/me/wishlist
func (h *MeHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	items, err := h.accounts.Wishlist(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, h.logger, "wishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, wishlistResponse{Items: nonNil(items)})
}

// AddToWishlist watches a product. Adding it twice is a no-op.
// POST /api/me/wishlist/{productID}
func (h *MeHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "productID")
	if err := h.accounts.AddToWishlist(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.logger, "wishlist add", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added", "product_id": id})
}

// RemoveFromWishlist stops watching a product.
// DELETE /api/me/wishlist/{productID}
func (h *MeHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "productID")
	if err := h.accounts.RemoveFromWishlist(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.logger, "wishlist remove", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "product_id": id})
}
