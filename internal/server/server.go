// Package server exposes the marketplace core over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/collectibles/internal/crypto"
	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/server/handler"
	"github.com/alanyoungcy/collectibles/internal/server/middleware"
	"github.com/alanyoungcy/collectibles/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, API key authentication is disabled
	// Signer verifies gateway-signed actor headers. Nil trusts X-Actor-ID.
	Signer     *crypto.ActorSigner
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Products *handler.ProductHandler
	Holds    *handler.HoldHandler
	Book     *handler.BookHandler
	Orders   *handler.OrderHandler
	Me       *handler.MeHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, handlers, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewRouter registers every route and wraps the mux in the middleware chain:
// CORS, logging, API key, identity, then rate limiting.
func NewRouter(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Products.
	mux.HandleFunc("GET /api/products", handlers.Products.ListProducts)
	mux.HandleFunc("POST /api/products", handlers.Products.CreateProduct)
	mux.HandleFunc("GET /api/products/{id}", handlers.Products.GetProduct)
	mux.HandleFunc("GET /api/products/{id}/book", handlers.Products.Book)
	mux.HandleFunc("GET /api/products/{id}/price-history", handlers.Products.PriceHistory)

	// Holds.
	mux.HandleFunc("POST /api/products/{id}/holds", handlers.Holds.PlaceHold)
	mux.HandleFunc("DELETE /api/holds/{id}", handlers.Holds.CancelHold)
	mux.HandleFunc("POST /api/holds/{id}/convert", handlers.Holds.ConvertHold)

	// Order book.
	mux.HandleFunc("POST /api/products/{id}/bids", handlers.Book.PlaceBid)
	mux.HandleFunc("DELETE /api/bids/{id}", handlers.Book.CancelBid)
	mux.HandleFunc("POST /api/products/{id}/asks", handlers.Book.PlaceAsk)
	mux.HandleFunc("DELETE /api/asks/{id}", handlers.Book.CancelAsk)

	// Orders.
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/complete", handlers.Orders.CompleteOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", handlers.Orders.CancelOrder)

	// Caller's own views.
	mux.HandleFunc("GET /api/me/dashboard", handlers.Me.Dashboard)
	mux.HandleFunc("GET /api/me/listings", handlers.Me.Listings)
	mux.HandleFunc("GET /api/me/wishlist", handlers.Me.Wishlist)
	mux.HandleFunc("POST /api/me/wishlist/{productID}", handlers.Me.AddToWishlist)
	mux.HandleFunc("DELETE /api/me/wishlist/{productID}", handlers.Me.RemoveFromWishlist)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Identity(cfg.Signer, time.Now, logger)(h)
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
