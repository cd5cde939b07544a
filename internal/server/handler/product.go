package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// DirectoryService defines the catalogue methods the product handler needs.
type DirectoryService interface {
	ListProduct(ctx context.Context, sellerID string, in domain.NewProduct) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	Marketplace(ctx context.Context, filter domain.ProductFilter, opts domain.ListOpts) ([]domain.Product, error)
	PriceHistory(ctx context.Context, productID string) ([]domain.PricePoint, error)
}

// HoldReader returns the live hold of a product.
type HoldReader interface {
	ActiveHold(ctx context.Context, productID string) (domain.Hold, error)
}

// BookReader returns the live order book of a product.
type BookReader interface {
	Book(ctx context.Context, productID string) (domain.BookView, error)
}

// ProductHandler serves listing and product read endpoints.
type ProductHandler struct {
	directory DirectoryService
	holds     HoldReader
	book      BookReader
	logger    *slog.Logger
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(directory DirectoryService, holds HoldReader, book BookReader, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		directory: directory,
		holds:     holds,
		book:      book,
		logger:    logHandler(logger, "product"),
	}
}

type listProductsResponse struct {
	Products []domain.Product `json:"products"`
}

// ListProducts returns available products, newest first.
// GET /api/products?category=cards&q=charizard&limit=50&offset=0
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("q")),
	}

	products, err := h.directory.Marketplace(r.Context(), filter, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, listProductsResponse{Products: nonNil(products)})
}

// CreateProduct lists a new product owned by the caller.
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	seller, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in domain.NewProduct
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.directory.ListProduct(r.Context(), seller, in)
	if err != nil {
		writeServiceError(w, r, h.logger, "list product", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type productResponse struct {
	Product domain.Product `json:"product"`
	Hold    *domain.Hold   `json:"hold"`
}

// GetProduct returns a product and its live hold, if any.
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	p, err := h.directory.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get product", err)
		return
	}

	resp := productResponse{Product: p}
	hold, err := h.holds.ActiveHold(r.Context(), id)
	switch {
	case err == nil:
		resp.Hold = &hold
	case !errors.Is(err, domain.ErrNotFound):
		writeServiceError(w, r, h.logger, "get product hold", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Book returns the live bids and asks of a product.
// GET /api/products/{id}/book
func (h *ProductHandler) Book(w http.ResponseWriter, r *http.Request) {
	view, err := h.book.Book(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get book", err)
		return
	}
	view.Bids = nonNil(view.Bids)
	view.Asks = nonNil(view.Asks)
	writeJSON(w, http.StatusOK, view)
}

type priceHistoryResponse struct {
	ProductID string              `json:"product_id"`
	Points    []domain.PricePoint `json:"points"`
}

// PriceHistory returns recorded sale prices, oldest first.
// GET /api/products/{id}/price-history
func (h *ProductHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	points, err := h.directory.PriceHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "price history", err)
		return
	}
	writeJSON(w, http.StatusOK, priceHistoryResponse{ProductID: id, Points: nonNil(points)})
}
