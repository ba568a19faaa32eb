package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/atvirokodosprendimai/activitylog/internal/adapters/events"
	"github.com/atvirokodosprendimai/activitylog/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/activitylog/internal/adapters/postgres"
	sqliteadapter "github.com/atvirokodosprendimai/activitylog/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/activitylog/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/activitylog/internal/config"
	"github.com/atvirokodosprendimai/activitylog/internal/core/ports"
	"github.com/atvirokodosprendimai/activitylog/internal/core/usecase"
	"github.com/atvirokodosprendimai/activitylog/migrations"
)

const migrateTimeout = 30 * time.Second

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// App holds the wired service. Background workers start in Run.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Server     *http.Server
	Activity   *usecase.ActivityService
	Registry   *usecase.BulkRegistry
	Sweeper    *usecase.Sweeper
	Dispatcher *usecase.OutboxDispatcher

	closer resourceCloser
}

// storage is the opened persistence layer shared by New, Migrate and Sweep.
type storage struct {
	db      *gormsqlite.DB
	markers ports.MarkerStore
	closer  resourceCloser
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	db, err := gormsqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	st := &storage{db: db, closer: resourceCloser{closers: []io.Closer{db}}}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = st.closer.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = st.closer.Close()
		return nil, err
	}

	switch cfg.Registry.Driver {
	case "postgres":
		if err := migrations.UpPostgres(migrateCtx, cfg.Registry.Postgres.DSN); err != nil {
			_ = st.closer.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Registry.Postgres)
		if err != nil {
			_ = st.closer.Close()
			return nil, err
		}
		st.markers = postgres.NewMarkerStore(pool)
		st.closer.closers = append([]io.Closer{closePool(pool)}, st.closer.closers...)
		logger.Info("bulk registry on postgres")
	default:
		st.markers = sqliteadapter.NewMarkerRepository(db)
		logger.Info("bulk registry on sqlite", "path", cfg.SQLite.Path)
	}
	return st, nil
}

func closePool(pool *pgxpool.Pool) io.Closer {
	return closerFunc(func() error {
		pool.Close()
		return nil
	})
}

// New opens storage, applies migrations and wires every component.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := usecase.LoadLocaleCatalog(cfg.Activity.DefaultLocale)
	if err != nil {
		_ = st.closer.Close()
		return nil, fmt.Errorf("load locales: %w", err)
	}

	clock := clockwork.NewRealClock()
	logStore := sqliteadapter.NewActivityLogStore(st.db)

	formatter := usecase.NewFormatter(catalog, cfg.Activity.NameThreshold)
	activityLogger := usecase.NewActivityLogger(logStore, clock, cfg.Activity.SinkRetryDelay, logger)
	registry := usecase.NewBulkRegistry(st.markers, clock, cfg.Registry.Staleness, logger)
	gate := usecase.NewSuppressionGate(registry, activityLogger, logger)
	activity := usecase.NewActivityService(formatter, activityLogger, usecase.ActivityServiceConfig{
		Clock:           clock,
		BatchWindow:     cfg.Activity.BatchWindow,
		TeardownTimeout: cfg.Activity.TeardownTimeout,
		Logger:          logger,
	})
	components := usecase.NewComponentService(sqliteadapter.NewComponentRepository(st.db), gate, registry, activityLogger, formatter, logger)
	queries := usecase.NewActivityQueryService(logStore)

	sweeper := usecase.NewSweeper(registry, clock, cfg.Registry.SweepInterval, cfg.Registry.Staleness, logger)
	dispatcher := usecase.NewOutboxDispatcher(sqliteadapter.NewOutboxRepository(st.db), newPublisher(cfg.Outbox, clock, logger), usecase.OutboxDispatcherConfig{
		Clock:     clock,
		Logger:    logger,
		Interval:  cfg.Outbox.Interval,
		BatchSize: cfg.Outbox.BatchSize,
		MaxRetry:  cfg.Outbox.MaxRetry,
	})

	handler := httpapi.NewHandler(activity, registry, queries, components, logger)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		Server:     server,
		Activity:   activity,
		Registry:   registry,
		Sweeper:    sweeper,
		Dispatcher: dispatcher,
		closer:     resourceCloser{closers: append([]io.Closer{dispatcher, sweeper}, st.closer.closers...)},
	}, nil
}

func newPublisher(cfg config.OutboxConfig, clock clockwork.Clock, logger *slog.Logger) ports.EventPublisher {
	if cfg.WebhookURL != "" {
		logger.Info("outbox webhook delivery enabled", "url", cfg.WebhookURL)
		return events.NewWebhookPublisher(events.WebhookConfig{
			URL:     cfg.WebhookURL,
			Secret:  cfg.WebhookSecret,
			Timeout: cfg.WebhookTimeout,
			Clock:   clock,
		})
	}
	return events.NewLogPublisher(logger)
}

// Run serves HTTP and runs the background workers until ctx is cancelled,
// then flushes every open editing context and stops the server.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Sweeper.Start(gctx)
	a.Dispatcher.Start(gctx)

	g.Go(func() error {
		a.logger.Info("listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.Activity.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush open contexts: %w", err))
		}
		a.logger.Info("shutdown complete")
		return errors.Join(errs...)
	})

	return g.Wait()
}

func (a *App) Close() error {
	return a.closer.Close()
}

// Migrate applies all schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return st.closer.Close()
}

// Sweep removes stale bulk markers once.
func Sweep(ctx context.Context, cfg *config.Config, logger *slog.Logger) (int64, error) {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer func() { _ = st.closer.Close() }()

	registry := usecase.NewBulkRegistry(st.markers, clockwork.NewRealClock(), cfg.Registry.Staleness, logger)
	return registry.Sweep(ctx, cfg.Registry.Staleness)
}
