// Package application assembles the ledger's collaborators from configuration.
// Both the HTTP server and ledgerctl start from Open.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/config"
	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/lock"
	"github.com/JonMunkholm/fuelledger/internal/session"
	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/JonMunkholm/fuelledger/internal/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App holds everything a process needs to serve the ledger.
type App struct {
	Config   *config.Config
	Store    store.Store
	Identity *identity.Service
	Service  *core.Service
	Sessions *session.Manager

	// Pool is nil for the memory driver.
	Pool  *pgxpool.Pool
	Redis *redis.Client

	ownsStore bool
}

// Options adjusts Open for callers that do not want every piece.
type Options struct {
	// SkipMigrate leaves the schema alone even when the config asks for
	// migrations on startup.
	SkipMigrate bool

	// Mailer overrides the structured-log mailer.
	Mailer identity.Mailer

	// Store replaces the configured driver. The App does not close it.
	Store store.Store
}

// Open connects the record store, optional Redis and builds the services.
// The caller must Close the returned App.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	if err := app.openStore(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}

	locker, sessions, err := app.openRedis(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	mailer := opts.Mailer
	if mailer == nil {
		mailer = identity.LogMailer{}
	}
	app.Identity = identity.NewService(app.Store, mailer, identity.Config{
		BcryptCost:    cfg.Identity.BcryptCost,
		ResetTokenTTL: cfg.Identity.ResetTokenTTL,
		ResetURL:      cfg.Identity.ResetURL,
	})

	app.Service, err = core.NewService(core.Deps{
		Store:    app.Store,
		Locker:   locker,
		Accounts: app.Identity,
	}, ServiceConfig(cfg))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}

	app.Sessions = session.NewManager(app.Identity, sessions,
		session.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TokenLifespan),
		session.Config{IdleTimeout: cfg.Session.IdleTimeout, TokenLifespan: cfg.Session.TokenLifespan})

	return app, nil
}

// ServiceConfig maps the process configuration onto the ledger service.
func ServiceConfig(cfg *config.Config) core.Config {
	return core.Config{
		InvoicePrefix:   cfg.Invoice.Prefix,
		CounterStart:    cfg.Invoice.CounterStart,
		DefaultHSCode:   cfg.Invoice.DefaultHSCode,
		LockTTL:         cfg.Invoice.LockTTL,
		ExportMax:       cfg.Export.MaxConcurrent,
		ExportMaxWait:   cfg.Export.MaxWaitTime,
		AuditRetention:  cfg.Audit.Retention(),
		AuditCheckEvery: cfg.Audit.CheckInterval,
	}
}

func (a *App) openStore(ctx context.Context, opts Options) error {
	if opts.Store != nil {
		a.Store = opts.Store
		return nil
	}
	a.ownsStore = true

	if a.Config.Store.Driver == config.DriverMemory {
		slog.Warn("using in-memory store; records are lost on exit")
		a.Store = store.NewMemory()
		return nil
	}

	pool, err := OpenPool(ctx, a.Config.Store)
	if err != nil {
		return err
	}
	a.Pool = pool

	if a.Config.Store.Migrate && !opts.SkipMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	a.Store = postgres.New(pool)
	return nil
}

// OpenPool creates and pings a connection pool sized from cfg.
func OpenPool(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// openRedis returns the shared lock and session store when Redis is
// configured, and in-process ones otherwise.
func (a *App) openRedis(ctx context.Context) (lock.Locker, session.Store, error) {
	rc := a.Config.Redis
	if rc.Address == "" {
		return lock.NewLocal(), session.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Address,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	a.Redis = rdb
	slog.Info("connected to redis", "address", rc.Address, "db", rc.DB)

	return lock.NewRedis(rdb), session.NewRedisStore(rdb), nil
}

// Close releases everything Open acquired, in reverse order.
func (a *App) Close() error {
	var errs []error
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Store != nil && a.ownsStore {
		errs = append(errs, a.Store.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
