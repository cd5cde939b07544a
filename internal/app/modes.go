package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/collectibles/internal/crypto"
	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/notify"
	"github.com/alanyoungcy/collectibles/internal/server"
	"github.com/alanyoungcy/collectibles/internal/server/handler"
	"github.com/alanyoungcy/collectibles/internal/server/middleware"
	"github.com/alanyoungcy/collectibles/internal/server/ws"
)

// shutdownTimeout bounds how long in-flight HTTP requests may drain.
const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP and WebSocket API and relays notifications.
// Expiry is still settled lazily on every read and write; the sweeper runs in
// a worker process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startRelay(ctx, g, deps)
	return g.Wait()
}

// WorkerMode runs the background loops: the expiry sweeper and the archiver.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API and the background loops in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	a.startRelay(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Sweeper.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps.Archiver)
		})
	}
}

func (a *App) startRelay(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier.Enabled() {
		relay := notify.NewRelay(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return relay.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "notifications disabled (no senders configured)")
	}
}

// archiveLoop archives settled orders and price history older than the
// retention window, once at start and then every interval.
func (a *App) archiveLoop(ctx context.Context, archiver domain.Archiver) error {
	interval := a.cfg.Archive.Interval.Duration
	retention := a.cfg.Archive.Retention.Duration
	a.logger.InfoContext(ctx, "archiver started",
		slog.Duration("interval", interval),
		slog.Duration("retention", retention),
	)

	run := func() {
		cutoff := time.Now().UTC().Add(-retention)
		orders, err := archiver.ArchiveOrders(ctx, cutoff)
		if err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "archiver: orders failed", slog.String("error", err.Error()))
		}
		prices, err := archiver.ArchivePriceHistory(ctx, cutoff)
		if err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "archiver: price history failed", slog.String("error", err.Error()))
		}
		if orders > 0 || prices > 0 {
			a.logger.InfoContext(ctx, "archiver: run complete",
				slog.Int64("orders", orders),
				slog.Int64("price_points", prices),
				slog.Time("cutoff", cutoff),
			)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	origins := a.cfg.Server.CORSOrigins
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(origins) == 0 || middleware.OriginAllowed(origins, origin)
		},
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	var signer *crypto.ActorSigner
	if a.cfg.Server.IdentitySecret != "" {
		signer = crypto.NewActorSigner(a.cfg.Server.IdentitySecret, a.cfg.Server.IdentitySkew.Duration)
	} else {
		a.logger.WarnContext(ctx, "HTTP server: identity_secret not set; trusting X-Actor-ID as sent")
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Probes, a.logger),
		Products: handler.NewProductHandler(deps.Directory, deps.Reservations, deps.OrderBook, a.logger),
		Holds:    handler.NewHoldHandler(deps.Reservations, a.logger),
		Book:     handler.NewBookHandler(deps.OrderBook, a.logger),
		Orders:   handler.NewOrderHandler(deps.Settlement, a.logger),
		Me:       handler.NewMeHandler(deps.Directory, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: origins,
		APIKey:      a.cfg.Server.APIKey,
		Signer:      signer,
		Limiter:     deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
