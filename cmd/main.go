// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/event-participation/internal/config"
	"github.com/Shivanand-hulikatti/event-participation/internal/database"
	"github.com/Shivanand-hulikatti/event-participation/internal/handler"
	"github.com/Shivanand-hulikatti/event-participation/internal/memstore"
	"github.com/Shivanand-hulikatti/event-participation/internal/reconcile"
	"github.com/Shivanand-hulikatti/event-participation/internal/repository"
	"github.com/Shivanand-hulikatti/event-participation/internal/service"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/Shivanand-hulikatti/event-participation/internal/stats"
	"github.com/Shivanand-hulikatti/event-participation/internal/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// storage is the set of ports one storage driver provides.
type storage struct {
	tx         ports.Transactor
	users      ports.UserRepo
	categories ports.CategoryRepo
	events     ports.EventRepo
	requests   ports.RequestRepo
	close      func()
}

func main() {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	// ── 1. Tracing ───────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Stats.App, cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("flush traces")
		}
	}()

	// ── 2. Storage ───────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	var statsClient ports.StatsClient
	if cfg.Stats.URL != "" {
		statsClient = stats.NewClient(cfg.Stats.URL, cfg.Stats.Timeout, stats.WithHitRetries(cfg.Stats.HitRetries))
	}
	admission := service.NewAdmissionService(store.tx, store.users, store.events, store.requests, log)
	events := service.NewEventService(store.tx, store.users, store.categories, store.events, statsClient, cfg.Stats.App, log)
	directory := service.NewDirectoryService(store.users, store.categories, log)

	router := handler.NewRouter(handler.Services{
		Admission: admission,
		Events:    events,
		Directory: directory,
	}, cfg.Server.TxTimeout, log)

	// ── 4. Start server and reconciler with graceful shutdown ────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			reconcile.New(admission, cfg.Reconcile.Interval, log).Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server…")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		s := memstore.New()
		return &storage{
			tx:         s,
			users:      s.Users(),
			categories: s.Categories(),
			events:     s.Events(),
			requests:   s.Requests(),
			close:      func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("connected to PostgreSQL")
	if err := database.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &storage{
		tx:         repository.NewTxManager(pool),
		users:      repository.NewUserRepository(pool),
		categories: repository.NewCategoryRepository(pool),
		events:     repository.NewEventRepository(pool),
		requests:   repository.NewRequestRepository(pool),
		close:      pool.Close,
	}, nil
}
