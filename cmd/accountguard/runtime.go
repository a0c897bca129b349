package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/httpapi"
	"github.com/MrEthical07/accountguard/metrics/export/prometheus"
	"github.com/MrEthical07/accountguard/storage/postgres"
)

// memoryRedis selects an in-process Redis for development.
const memoryRedis = "memory"

// accountStore is what the CLI needs from a repository: the engine contract
// plus Create for seeding.
type accountStore interface {
	account.Repository
	Create(ctx context.Context, a *account.Account) error
}

// runtime owns every connection the binary opens.
type runtime struct {
	cfg      accountguard.Config
	logger   *slog.Logger
	engine   *accountguard.Engine
	accounts accountStore
	events   *postgres.EventStore
	closers  []func()
}

// newRuntime connects storage and Redis as configured and builds the
// engine. Without a database URL accounts live in memory and events go to
// the log.
func newRuntime(ctx context.Context, cfg accountguard.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	b := accountguard.New().WithConfig(cfg).WithLogger(logger)

	if cfg.Server.DatabaseURL == "" {
		logger.Warn("no database configured, accounts are kept in memory")
		rt.accounts = account.NewMemoryRepository()
		b.WithAuditSink(audit.NewSlogSink(logger))
	} else {
		pool, err := pgxpool.New(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			rt.Close()
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
		}
		rt.accounts = postgres.NewAccountRepository(pool)
		rt.events = postgres.NewEventStore(pool)
		b.WithAuditSink(rt.events)
	}
	b.WithRepository(rt.accounts)

	rdb, err := rt.openRedis()
	if err != nil {
		rt.Close()
		return nil, err
	}
	if rdb != nil {
		b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		rt.Close()
		return nil, oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	rt.engine = engine
	return rt, nil
}

func (rt *runtime) openRedis() (redis.UniversalClient, error) {
	addr := rt.cfg.Server.RedisAddr
	switch addr {
	case "":
		return nil, nil
	case memoryRedis:
		mr := miniredis.NewMiniRedis()
		if err := mr.Start(); err != nil {
			return nil, oops.Code("REDIS_START_FAILED").Wrap(err)
		}
		rt.closers = append(rt.closers, mr.Close)
		rt.logger.Warn("using in-process redis, rate limits are not shared")
		addr = mr.Addr()
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	rt.closers = append(rt.closers, func() { _ = rdb.Close() })
	return rdb, nil
}

// handler mounts the API and the metrics endpoint.
func (rt *runtime) handler() (http.Handler, error) {
	metrics, err := prometheus.Handler(rt.engine)
	if err != nil {
		return nil, oops.Code("METRICS_REGISTER_FAILED").Wrap(err)
	}

	api := httpapi.New(rt.engine, httpapi.Options{
		AdminKey:          rt.cfg.Server.AdminKey,
		TrustForwardedFor: rt.cfg.Server.TrustForwardedFor,
		Logger:            rt.logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", api.Routes())
	mux.Handle("GET /metrics", metrics)
	return mux, nil
}

// Close drains the engine first so queued events reach storage, then
// releases connections in reverse order.
func (rt *runtime) Close() {
	if rt.engine != nil {
		rt.engine.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// requireDatabase rejects commands that make no sense against memory storage.
func (rt *runtime) requireDatabase() error {
	if rt.events == nil {
		return oops.Code("CONFIG_INVALID").Wrap(errNoDatabase)
	}
	return nil
}

var errNoDatabase = errors.New("database_url is required for this command")
