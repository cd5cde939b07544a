package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COLLECTD_* environment variable overrides, and
// returns the final Config. An empty path skips the file and starts from
// Defaults. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COLLECTD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "COLLECTD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COLLECTD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "COLLECTD_SERVER_API_KEY")
	setStr(&cfg.Server.IdentitySecret, "COLLECTD_SERVER_IDENTITY_SECRET")
	setDuration(&cfg.Server.IdentitySkew, "COLLECTD_SERVER_IDENTITY_SKEW")
	setStringSlice(&cfg.Server.CORSOrigins, "COLLECTD_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "COLLECTD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "COLLECTD_SERVER_RATE_WINDOW")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "COLLECTD_STORAGE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COLLECTD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "COLLECTD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COLLECTD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COLLECTD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COLLECTD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COLLECTD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COLLECTD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COLLECTD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COLLECTD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COLLECTD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "COLLECTD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "COLLECTD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COLLECTD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COLLECTD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COLLECTD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COLLECTD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COLLECTD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "COLLECTD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "COLLECTD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COLLECTD_S3_REGION")
	setStr(&cfg.S3.Bucket, "COLLECTD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COLLECTD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COLLECTD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COLLECTD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COLLECTD_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setDuration(&cfg.Market.HoldTTL, "COLLECTD_MARKET_HOLD_TTL")
	setDuration(&cfg.Market.DefaultBidTTL, "COLLECTD_MARKET_DEFAULT_BID_TTL")
	setDuration(&cfg.Market.MaxBidTTL, "COLLECTD_MARKET_MAX_BID_TTL")
	setDuration(&cfg.Market.SweepInterval, "COLLECTD_MARKET_SWEEP_INTERVAL")
	setInt(&cfg.Market.SweepBatch, "COLLECTD_MARKET_SWEEP_BATCH")
	setDuration(&cfg.Market.LockTTL, "COLLECTD_MARKET_LOCK_TTL")
	setDuration(&cfg.Market.LockWait, "COLLECTD_MARKET_LOCK_WAIT")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COLLECTD_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "COLLECTD_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "COLLECTD_ARCHIVE_RETENTION")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COLLECTD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COLLECTD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COLLECTD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COLLECTD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COLLECTD_MODE")
	setStr(&cfg.LogLevel, "COLLECTD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
