package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/config"
	"currency-rates-service/internal/infrastructure/httpx"
	"currency-rates-service/internal/infrastructure/logx"
	"currency-rates-service/internal/infrastructure/memstore"
	"currency-rates-service/internal/infrastructure/pg"
	"currency-rates-service/internal/infrastructure/provider"
	redisstore "currency-rates-service/internal/infrastructure/redis"
	"currency-rates-service/internal/infrastructure/sqlite"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrMissingDBURL = errors.New("DATABASE_URL is required for STORAGE=pg")

// Store is a RateStore together with the unit of work that makes its writes atomic.
type Store struct {
	Rates application.RateStore
	UoW   application.UnitOfWork
}

// BuildStore opens the backend selected by STORAGE and applies its migrations.
func BuildStore(ctx context.Context, cfg config.Config) (Store, func(), error) {
	log := logx.L()

	switch cfg.Storage {
	case "pg":
		if cfg.DatabaseURL == "" {
			return Store{}, func() {}, ErrMissingDBURL
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return Store{}, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return Store{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return Store{Rates: pg.NewRateStore(db), UoW: pg.NewUnitOfWork(db)}, cleanup, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return Store{}, func() {}, err
		}
		if err := sqlite.RunMigrations(db); err != nil {
			_ = db.Close()
			return Store{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing sqlite")
			_ = db.Close()
		}
		return Store{Rates: sqlite.NewRateStore(db), UoW: sqlite.NewUnitOfWork(db)}, cleanup, nil
	case "memory":
		log.Warn("using in-memory storage; rates are lost on restart")
		return Store{Rates: memstore.New(), UoW: application.NoopUoW{}}, func() {}, nil
	default:
		return Store{}, func() {}, fmt.Errorf("unsupported STORAGE=%q", cfg.Storage)
	}
}

// BuildRedis returns a client when any component needs Redis, nil otherwise.
func BuildRedis(ctx context.Context, cfg config.Config) (*redis.Client, func(), error) {
	if !cfg.UsesRedis() {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, func() {}, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func BuildLocker(cfg config.Config, client *redis.Client) (application.KeyLocker, error) {
	switch cfg.LockBackend {
	case "", "local":
		return application.NewLocalLocker(), nil
	case "redis":
		if client == nil {
			return nil, errors.New("LOCK_BACKEND=redis needs a redis client")
		}
		return redisstore.NewLocker(client, cfg.LockTTL), nil
	default:
		return nil, fmt.Errorf("unsupported LOCK_BACKEND=%q", cfg.LockBackend)
	}
}

func BuildIdempotency(cfg config.Config, client *redis.Client) (application.IdempotencyStore, error) {
	switch cfg.IdempotencyBackend {
	case "", "none":
		return application.NoopIdempotency{}, nil
	case "redis":
		if client == nil {
			return nil, errors.New("IDEMPOTENCY_BACKEND=redis needs a redis client")
		}
		return redisstore.New(client, cfg.RedisTTL), nil
	default:
		return nil, fmt.Errorf("unsupported IDEMPOTENCY_BACKEND=%q", cfg.IdempotencyBackend)
	}
}

// BuildSources returns the rate sources in the order auto-updates try them.
func BuildSources(cfg config.Config) ([]application.RateSource, error) {
	switch cfg.Provider {
	case "fake":
		return []application.RateSource{provider.NewFake(nil)}, nil
	case "", "live":
		client := &httpx.Client{HTTP: &http.Client{Timeout: cfg.RequestTimeout}}
		return []application.RateSource{
			&provider.YemenExchange{BaseURL: cfg.PrimaryAPIBase, Client: client},
			&provider.ExchangeRateHost{BaseURL: cfg.SecondaryAPIBase, APIKey: cfg.SecondaryAPIKey, Client: client},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported PROVIDER=%q", cfg.Provider)
	}
}

// BuildService wires the rates service and seeds the tracked currencies.
func BuildService(ctx context.Context, cfg config.Config, m application.Metrics) (*application.RatesService, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*application.RatesService, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	store, closeStore, err := BuildStore(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("build store: %w", err))
	}
	cleanups = append(cleanups, closeStore)

	rdb, closeRedis, err := BuildRedis(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeRedis)

	locks, err := BuildLocker(cfg, rdb)
	if err != nil {
		return fail(err)
	}
	idem, err := BuildIdempotency(cfg, rdb)
	if err != nil {
		return fail(err)
	}
	sources, err := BuildSources(cfg)
	if err != nil {
		return fail(err)
	}
	if m == nil {
		m = application.NoopMetrics{}
	}

	svc := application.NewRatesService(store.Rates, sources,
		application.WithUnitOfWork(store.UoW),
		application.WithLocker(locks),
		application.WithIdempotency(idem),
		application.WithMetrics(m),
		application.WithLogger(logx.L()),
		application.WithConcurrency(cfg.AutoUpdateConcurrency),
	)
	if _, err := svc.Seed(ctx); err != nil {
		return fail(err)
	}

	logx.L().Info("service_ready",
		zap.String("storage", cfg.Storage),
		zap.String("provider", cfg.Provider),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("idempotency_backend", cfg.IdempotencyBackend),
	)
	return svc, cleanup, nil
}
