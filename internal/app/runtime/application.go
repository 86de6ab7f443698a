// Package runtime assembles the economy service from configuration and owns
// the HTTP server lifecycle.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	app "github.com/R3E-Network/kozak_economy/internal/app"
	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/httpapi"
	"github.com/R3E-Network/kozak_economy/internal/app/services/crafting"
	"github.com/R3E-Network/kozak_economy/internal/app/services/market"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/internal/app/storage/memory"
	"github.com/R3E-Network/kozak_economy/internal/app/storage/sqlstore"
	"github.com/R3E-Network/kozak_economy/internal/config"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	core       *app.Application
	api        *httpapi.API
	httpServer *http.Server
	store      storage.Store
	redis      *events.RedisPublisher
}

// NewApplication loads configuration from path (optional) and the
// environment, then builds the service.
func NewApplication(ctx context.Context, path string, envFiles ...string) (*Application, error) {
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Build(ctx, cfg)
}

// Build constructs the service from an already validated configuration.
func Build(ctx context.Context, cfg *config.Config) (_ *Application, err error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	a := &Application{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	if a.store, err = openStore(ctx, cfg.Database, log.Named("storage")); err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	publisher := events.Multi{events.NewLogPublisher(log.Named("events"))}
	if url := strings.TrimSpace(cfg.Events.RedisURL); url != "" {
		if a.redis, err = events.NewRedisPublisher(url, cfg.Events.Channel); err != nil {
			return nil, fmt.Errorf("configure redis publisher: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = a.redis.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		publisher = append(publisher, a.redis)
	}

	opts, err := coreOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.Publisher = publisher
	if a.core, err = app.New(a.store, opts, log); err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	owner, _ := cfg.OwnerAddress()
	if cfg.Setup.AutoWire {
		if err = a.core.Deploy(ctx, owner); err != nil {
			return nil, fmt.Errorf("apply deployment wiring: %w", err)
		}
	}

	a.api, err = httpapi.New(a.core, httpapi.Options{
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		Issuer:      cfg.Auth.Issuer,
		RateLimit:   cfg.RateLimit.RequestsPerSecond,
		Burst:       cfg.RateLimit.Burst,
		CORSOrigins: cfg.Server.CORSOrigins,
		AuditFile:   cfg.Audit.File,
	}, log.Named("http"))
	if err != nil {
		return nil, fmt.Errorf("build http api: %w", err)
	}

	a.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	log.WithField("driver", cfg.Database.Driver).
		WithField("recipes", a.core.Crafting.Catalog().Len()).
		WithField("catalog", a.core.Crafting.Catalog().Digest()).
		Info("economy service configured")
	return a, nil
}

// coreOptions translates configuration into application options.
func coreOptions(cfg *config.Config) (app.Options, error) {
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return app.Options{}, err
	}
	opts := app.Options{
		Owners:         access.UniformOwners(owner),
		SupplySchedule: cfg.Supply.Schedule,
	}

	opts.Crafting = append(opts.Crafting, crafting.WithSearchCooldown(cfg.Crafting.SearchCooldown))
	weights, err := cfg.ResourceWeights()
	if err != nil {
		return app.Options{}, err
	}
	if len(weights) > 0 {
		opts.Crafting = append(opts.Crafting, crafting.WithWeights(weights))
	}
	if path := strings.TrimSpace(cfg.Crafting.RecipesFile); path != "" {
		catalog, err := crafting.LoadCatalog(path)
		if err != nil {
			return app.Options{}, err
		}
		opts.Crafting = append(opts.Crafting, crafting.WithCatalog(catalog))
	}

	if cfg.Market.FeeBps > 0 {
		recipient, err := cfg.FeeRecipientAddress()
		if err != nil {
			return app.Options{}, err
		}
		opts.Market = append(opts.Market, market.WithFee(cfg.Market.FeeBps, recipient))
	}
	if cfg.Market.RewardPerSale > 0 {
		opts.Market = append(opts.Market, market.WithSaleReward(cfg.Market.RewardPerSale))
	}
	return opts, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler { return a.api }

// Core returns the wired domain services.
func (a *Application) Core() *app.Application { return a.core }

// Run starts background services and the HTTP server, and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.core.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and background services and
// releases the store.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := a.core.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.release()
	return errors.Join(errs...)
}

func (a *Application) release() {
	if a.api != nil {
		if err := a.api.Close(); err != nil {
			a.log.WithError(err).Warn("error closing audit log")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("error closing store")
		}
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (storage.Store, error) {
	if strings.EqualFold(cfg.Driver, "memory") || cfg.Driver == "" {
		log.Warn("using in-memory store; state is lost on restart")
		return memory.New(), nil
	}
	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(ctx, dialect.DriverName(), cfg)
	if err != nil {
		return nil, err
	}
	store := sqlstore.New(db, dialect, log)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func openDatabase(ctx context.Context, driver string, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
