package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/guanabara/catalog-sync/internal/catalog"
	"github.com/guanabara/catalog-sync/internal/catalogsync"
	"github.com/guanabara/catalog-sync/internal/erp"
	"github.com/guanabara/catalog-sync/internal/observability"
	"github.com/guanabara/catalog-sync/internal/platform/cache"
	"github.com/guanabara/catalog-sync/internal/platform/db"
	"github.com/guanabara/catalog-sync/internal/shared"
)

// Deps is the dependency graph shared by the binaries.
type Deps struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Redis   *redis.Client
	Pool    *pgxpool.Pool
	Store   *catalog.FileStore
	Cache   *catalog.Cache
	Reader  *catalog.Reader
	Sync    *catalogsync.Service
	Guard   *shared.AdminGuard
}

// BuildDeps connects to Redis and Postgres and wires the sync service.
// Redis is optional: without it the lock and cache fall back to in-process
// variants. Postgres is only used when PG_DSN is set.
func BuildDeps(ctx context.Context, cfg *Config, logger *slog.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if logger == nil {
		logger = NewLogger(cfg)
	}
	if !cfg.HasVendorCredentials() {
		logger.Warn("no vendor credentials configured; syncs will fail authentication")
	}

	d := &Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Guard:   shared.NewAdminGuard(cfg.AdminTokenHash),
	}

	var locker shared.Locker = shared.NewLocalLocker()
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, using in-process lock and no cache", slog.Any("error", err))
	} else {
		d.Redis = redisClient
		locker = shared.NewRedisLocker(redisClient)
	}

	var history catalogsync.HistoryRepository = catalogsync.NewMemoryHistory(cfg.SyncHistoryLimit)
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Pool = pool
		pg := catalogsync.NewPGHistory(pool, cfg.SyncHistoryLimit)
		if err := pg.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, err
		}
		history = pg
	}

	client, err := erp.NewClient(erp.Config{
		BaseURL:       cfg.VendorBaseURL,
		Token:         cfg.VendorToken,
		APIKey:        cfg.VendorAPIKey,
		Timeout:       cfg.VendorTimeout,
		RatePerSecond: cfg.VendorRateLimit,
		Burst:         cfg.VendorRateBurst,
		Logger:        logger,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Store = catalog.NewFileStore(cfg.CatalogDataDir, cfg.CatalogFile, cfg.SyncSnapshotFile)
	d.Cache = catalog.NewCache(d.Redis, cfg.CatalogCacheTTL, logger)
	d.Reader = catalog.NewReader(d.Store, d.Cache, logger)

	svc, err := catalogsync.NewService(catalogsync.Config{
		ProductPageSize: cfg.VendorProductPageSize,
		LookupPageSize:  cfg.VendorLookupPageSize,
		FetchGroups:     cfg.VendorFetchGroups,
		LockTTL:         cfg.SyncLockTTL,

		AbortOnEmptyProducts: cfg.SyncAbortOnEmptyProducts,
	}, catalogsync.Deps{
		Source:  client,
		Store:   d.Store,
		Locker:  locker,
		Cache:   d.Cache,
		History: history,
		Metrics: d.Metrics.Jobs(),
		Logger:  logger,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Sync = svc
	return d, nil
}

// RedisOpts returns the asynq connection options.
func (c *Config) RedisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr}
}

// Close releases connections.
func (d *Deps) Close() {
	if d == nil {
		return
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
