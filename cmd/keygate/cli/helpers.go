package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/keygate/keygate/internal/clock"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/keygen"
	"github.com/keygate/keygate/internal/ratelimit"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
	"github.com/keygate/keygate/internal/store/mssql"
	"github.com/keygate/keygate/internal/store/mysql"
	"github.com/keygate/keygate/internal/store/oracle"
	"github.com/keygate/keygate/internal/store/postgres"
	"github.com/keygate/keygate/internal/store/sqlite"
)

// newStoreRegistry creates a store registry with all supported SQL dialects
// registered. "memory" is always available.
func newStoreRegistry() *store.Registry {
	registry := store.NewRegistry()
	registry.Register(sqlite.New())
	registry.Register(postgres.New())
	registry.Register(mysql.New())
	registry.Register(mssql.New())
	registry.Register(oracle.New())
	return registry
}

// openBackend opens the configured key store. SQLite without a DSN lives in
// the data directory, which is created on demand.
func openBackend(cfg config.StoreConfig) (store.Backend, error) {
	dsn := cfg.DSN
	if cfg.Driver == "sqlite" && dsn == "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = sqlite.DSN(cfg.DataDir)
	}

	backend, err := newStoreRegistry().Open(store.Options{
		Driver:          cfg.Driver,
		DSN:             dsn,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s key store: %w", cfg.Driver, err)
	}
	return backend, nil
}

// engines is everything a command needs to issue, validate and sweep keys.
type engines struct {
	backend   store.Backend
	limiter   ratelimit.Limiter
	policy    ratelimit.Policy
	clock     clock.Clock
	issuer    *service.Issuer
	validator *service.Validator
	sweeper   *service.Sweeper
	closers   []func()
}

// buildEngines opens the store and the rate limiter and wires the engines.
// The limiter is shared through Redis when redis.addr is set and in-process
// otherwise. obs may be nil. Call Close when done.
func buildEngines(ctx context.Context, cfg *config.Config, logger *slog.Logger, obs service.Observer) (*engines, error) {
	e := &engines{
		clock:  clock.Real(),
		policy: ratelimit.Policy{Max: cfg.RateLimit.Max, Window: cfg.RateLimit.Window},
	}

	backend, err := openBackend(cfg.Store)
	if err != nil {
		return nil, err
	}
	e.backend = backend
	e.closers = append(e.closers, func() { backend.Close() })

	if cfg.Redis.Addr != "" {
		client, err := ratelimit.Dial(ctx, ratelimit.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, func() { client.Close() })

		limiter, err := ratelimit.NewRedis(client, e.policy, e.clock, cfg.Redis.Prefix)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.limiter = limiter
		logger.Info("rate limiter ready", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		limiter, err := ratelimit.NewMemory(e.policy, e.clock)
		if err != nil {
			e.Close()
			return nil, err
		}
		limiter.StartJanitor(e.policy.Window)
		e.closers = append(e.closers, limiter.Shutdown)
		e.limiter = limiter
	}

	var opts []keygen.Option
	if cfg.Keys.Secret != "" {
		opts = append(opts, keygen.WithSecret(cfg.Keys.Secret))
	}
	gen, err := keygen.New(cfg.Keys.Length, opts...)
	if err != nil {
		e.Close()
		return nil, err
	}

	svcCfg := service.Config{
		TTL:             cfg.Keys.TTL,
		RequirePlayerID: cfg.Keys.RequirePlayerID,
		StoreTimeout:    cfg.Store.Timeout,
		CleanupInterval: cfg.Cleanup.Interval,
		Logger:          logger,
		Observer:        obs,
	}
	e.issuer = service.NewIssuer(backend, e.limiter, gen, e.clock, svcCfg)
	e.validator = service.NewValidator(backend, e.clock, svcCfg)
	e.sweeper = service.NewSweeper(backend, e.clock, svcCfg)
	return e, nil
}

// Close releases everything buildEngines opened, newest first.
func (e *engines) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
