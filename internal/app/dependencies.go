// Package app assembles the services shared by the API and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/alerts"
	"github.com/noah-isme/kasir-kopi/internal/analytics"
	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/checkout"
	"github.com/noah-isme/kasir-kopi/internal/config"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/events"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/lock"
	"github.com/noah-isme/kasir-kopi/internal/obs"
	"github.com/noah-isme/kasir-kopi/internal/resilience"
	"github.com/noah-isme/kasir-kopi/internal/sales"
	"github.com/noah-isme/kasir-kopi/internal/tabs"
)

// Dependencies enumerates the infrastructure and domain services of one process.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger

	Pool       *pgxpool.Pool
	Postgres   *docstore.Postgres
	Store      docstore.Store
	Redis      *redis.Client
	TaskClient *asynq.Client
	Locker     lock.Locker

	Events    *events.Bus
	Catalog   *catalog.Service
	Inventory *inventory.Service
	Sessions  *cart.SessionStore
	Engine    *checkout.Engine
	Tabs      *tabs.Manager
	Sales     *sales.Service
	Analytics *analytics.Service
	Alerts    *alerts.Service
	Enqueuer  *alerts.Enqueuer
}

// New connects to the configured store and Redis and builds every service.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}

	rdb, err := NewRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		return nil, err
	}
	d.Redis = rdb

	if err := d.initStore(ctx); err != nil {
		d.Close()
		return nil, err
	}

	d.TaskClient = asynq.NewClientFromRedisClient(rdb)
	d.Locker = lock.Locker{R: rdb, Prefix: "kasir"}
	d.Enqueuer = &alerts.Enqueuer{
		Client: d.TaskClient,
		Window: cfg.AlertUniqueWindow,
		Log:    logger.With().Str("component", "alerts").Logger(),
	}
	d.Events = &events.Bus{
		Store: d.Store,
		Notifiers: []events.Notifier{
			events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()},
			d.Enqueuer,
		},
	}

	d.Inventory, err = inventory.NewService(inventory.ServiceConfig{Store: d.Store, Events: d.Events, Logger: logger})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Catalog, err = catalog.NewService(catalog.ServiceConfig{
		Store: d.Store,
		Cache: catalog.NewCache(rdb, cfg.CatalogCacheTTL).
			WithBreaker(resilience.NewBreaker("catalog_cache", 5, 0.5, 30*time.Second).WithLogger(logger)),
		Ingredients: d.Inventory,
		Logger:      logger,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Sessions = &cart.SessionStore{R: rdb, TTL: cfg.CartSessionTTL}
	d.Engine = &checkout.Engine{Store: d.Store, Events: d.Events, Log: logger.With().Str("component", "checkout").Logger()}
	d.Tabs = &tabs.Manager{Store: d.Store, Engine: d.Engine, Products: d.Catalog, Log: logger.With().Str("component", "tabs").Logger()}
	d.Sales = &sales.Service{Store: d.Store, Location: cfg.Location}
	d.Analytics = &analytics.Service{Sales: d.Sales, R: rdb, TTL: cfg.AnalyticsCacheTTL, Location: cfg.Location, DefaultRange: 7}
	d.Alerts = &alerts.Service{Store: d.Store}
	return d, nil
}

func (d *Dependencies) initStore(ctx context.Context) error {
	opts := docstore.Options{MaxAttempts: d.Config.StoreTxMaxAttempts, OnAttempts: obs.ObserveTxAttempts}
	switch d.Config.StoreDriver {
	case config.DriverMemory:
		d.Logger.Warn().Msg("using in-memory document store; data is lost on restart and not shared between processes")
		d.Store = docstore.NewMemory(opts)
		return nil
	case config.DriverPostgres:
		if d.Config.DBAutoMigrate {
			if err := docstore.Migrate(d.Config.DatabaseURL); err != nil {
				return err
			}
		}
		pool, err := NewPool(ctx, d.Config.DatabaseURL, "kasir")
		if err != nil {
			return err
		}
		d.Pool = pool
		d.Postgres = docstore.NewPostgres(pool, opts, d.Logger.With().Str("component", "docstore").Logger())
		d.Store = d.Postgres
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", d.Config.StoreDriver)
	}
}

// Listen relays cross-process change notifications until ctx ends. It
// returns immediately for the in-memory store.
func (d *Dependencies) Listen(ctx context.Context) error {
	if d.Postgres == nil {
		return nil
	}
	return d.Postgres.Listen(ctx)
}

// Close releases every connection opened by New.
func (d *Dependencies) Close() {
	if d.TaskClient != nil {
		if err := d.TaskClient.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
}

// NewPool opens a traced pgx pool.
func NewPool(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens an instrumented Redis client.
func NewRedis(ctx context.Context, url string, metricsEnabled bool, logger zerolog.Logger) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
