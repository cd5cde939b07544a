package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/collectibles/internal/blob/s3"
	cachemem "github.com/alanyoungcy/collectibles/internal/cache/memory"
	"github.com/alanyoungcy/collectibles/internal/cache/redis"
	"github.com/alanyoungcy/collectibles/internal/clock"
	"github.com/alanyoungcy/collectibles/internal/config"
	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/lock"
	"github.com/alanyoungcy/collectibles/internal/notify"
	"github.com/alanyoungcy/collectibles/internal/server/handler"
	"github.com/alanyoungcy/collectibles/internal/service"
	"github.com/alanyoungcy/collectibles/internal/store/memory"
	"github.com/alanyoungcy/collectibles/internal/store/postgres"
)

// streamMaxLen caps the market event stream kept in Redis.
const streamMaxLen = 10000

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Stores      domain.Stores
	Locks       lock.Locker
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Archiver is nil unless archival is enabled.
	Archiver domain.Archiver
	Notifier *notify.Notifier

	Reservations *service.ReservationService
	OrderBook    *service.OrderBookService
	Directory    *service.DirectoryService
	Settlement   *service.SettlementService
	Sweeper      *service.Sweeper

	// Probes are reported by the health endpoint.
	Probes map[string]handler.Probe
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Probes: make(map[string]handler.Probe)}

	// --- Storage ---
	switch cfg.Storage.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Stores = pgClient.Stores()
		deps.Probes["postgres"] = func(ctx context.Context) error { return pgClient.Pool().Ping(ctx) }
	default:
		logger.WarnContext(ctx, "wire: using in-memory storage; state is lost on restart")
		deps.Stores = memory.New().Stores()
	}

	// --- Redis (optional) ---
	var remoteLocks domain.LockManager
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		remoteLocks = redis.NewLockManager(redisClient, logger)
		deps.SignalBus = redis.NewSignalBus(redisClient, streamMaxLen)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Probes["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = cachemem.NewSignalBus()
		deps.RateLimiter = cachemem.NewRateLimiter()
	}
	deps.Locks = lock.NewLayered(remoteLocks, logger,
		lock.WithTTL(cfg.Market.LockTTL.Duration),
		lock.WithWait(cfg.Market.LockWait.Duration),
	)

	// --- S3 archive (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Stores.Orders,
			deps.Stores.PriceHistory,
			deps.Stores.Audit,
			logger,
		)
		deps.Probes["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	core := service.Core{
		Stores: deps.Stores,
		Locks:  deps.Locks,
		Clock:  clock.NewSystem(),
		Events: service.NewPublisher(deps.SignalBus, deps.Stores.Audit, logger),
		Logger: logger,
	}
	deps.Reservations = service.NewReservationService(core, cfg.Market.HoldTTL.Duration, cfg.Market.SweepBatch)
	deps.OrderBook = service.NewOrderBookService(core,
		service.WithBidTTL(cfg.Market.DefaultBidTTL.Duration, cfg.Market.MaxBidTTL.Duration),
		service.WithSweepBatch(cfg.Market.SweepBatch),
	)
	deps.Directory = service.NewDirectoryService(core)
	deps.Settlement = service.NewSettlementService(core)
	deps.Sweeper = service.NewSweeper(deps.Reservations, deps.OrderBook, cfg.Market.SweepInterval.Duration, logger)

	return deps, cleanup, nil
}
