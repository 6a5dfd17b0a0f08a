package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/genmarket/internal/account"
	s3blob "github.com/alanyoungcy/genmarket/internal/blob/s3"
	"github.com/alanyoungcy/genmarket/internal/cache/redis"
	"github.com/alanyoungcy/genmarket/internal/config"
	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/notify"
	"github.com/alanyoungcy/genmarket/internal/server/handler"
	"github.com/alanyoungcy/genmarket/internal/store/local"
	"github.com/alanyoungcy/genmarket/internal/store/postgres"
)

// Dependencies bundles every backing service the commands need. Optional
// services are nil when disabled in the configuration.
type Dependencies struct {
	// Account slot
	Accounts *account.Manager

	// Stores (postgres)
	DeploymentStore domain.DeploymentStore
	AuditStore      domain.AuditStore

	// Caches (redis)
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (s3)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks probes every connected backend.
	HealthChecks map[string]handler.HealthCheck
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
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- PostgreSQL ---
	var pgClient *postgres.Client
	if cfg.Postgres.Enabled {
		var err error
		pgClient, err = postgres.New(ctx, postgres.ClientConfig{
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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.DeploymentStore = postgres.NewDeploymentStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage (archiving needs the audit log too) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.AuditStore)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Account slot ---
	kv, closeKV, err := accountStore(cfg.Account, pgClient, redisClient)
	if err != nil {
		return fail(err)
	}
	if closeKV != nil {
		closers = append(closers, closeKV)
	}
	deps.Accounts = account.NewManager(kv, account.Config{
		Password:      cfg.Account.Password,
		AutoProvision: cfg.Account.AutoProvision,
	}, logger)

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

	return deps, cleanup, nil
}

// accountStore opens the key-value store backing the account slot.
func accountStore(cfg config.AccountConfig, pg *postgres.Client, rc *redis.Client) (domain.KeyValueStore, func(), error) {
	switch strings.ToLower(cfg.Store) {
	case "", "local":
		s, err := local.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: account store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		if rc == nil {
			return nil, nil, fmt.Errorf("wire: account store redis requires redis.enabled")
		}
		return redis.NewKVStore(rc), nil, nil
	case "postgres":
		if pg == nil {
			return nil, nil, fmt.Errorf("wire: account store postgres requires postgres.enabled")
		}
		return postgres.NewKVStore(pg.Pool()), nil, nil
	default:
		return nil, nil, fmt.Errorf("wire: unknown account store %q", cfg.Store)
	}
}
