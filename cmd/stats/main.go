// cmd/stats is the entry point of the stats service, which records endpoint
// hits and reports view counts.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/event-participation/internal/config"
	"github.com/Shivanand-hulikatti/event-participation/internal/handler"
	"github.com/Shivanand-hulikatti/event-participation/internal/stats/server"
	"github.com/Shivanand-hulikatti/event-participation/internal/telemetry"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	var cfg config.StatsServerConfig
	if err := config.Load(&cfg); err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "ewm-stats-service", cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint)
	if err != nil {
		log.WithError(err).Fatal("telemetry")
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	db, err := server.Open(ctx, cfg.Postgres, log)
	if err != nil {
		log.WithError(err).Fatal("stats database")
	}
	defer db.Close()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(handler.Logger(log))
	r.Get("/health", handler.HealthCheck)
	server.NewHandler(server.NewHitRepository(db), log).Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("stats server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down stats server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("stats server stopped")
}
