// scheduler runs the background jobs outside the API process: today that is
// the invalidated token pruner. Set EMBEDDED_PRUNER=false on the API
// deployment when running this.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/marketplace/config"
	"github.com/ErlanBelekov/marketplace/internal/health"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/marketplace/internal/log"
	"github.com/ErlanBelekov/marketplace/internal/metrics"
	"github.com/ErlanBelekov/marketplace/internal/scheduler"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	st, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	if !st.Shared() {
		stop()
		st.Close()
		log.Fatalf("store driver %q is process-local, the scheduler needs postgres or mongo", cfg.StoreDriver)
	}

	logger.Info("store connected", "driver", cfg.StoreDriver)

	metrics.Register()
	checker := health.NewChecker(st.Pingers, logger, prometheus.DefaultRegisterer)

	pruner, err := scheduler.NewPruner(st.Users, cfg.PruneSchedule, logger)
	if err != nil {
		stop()
		st.Close()
		log.Fatalf("pruner: %v", err)
	}

	// One cycle at boot clears whatever piled up while nothing was running.
	if _, err := pruner.PruneOnce(ctx); err != nil {
		logger.Error("initial prune", "error", err)
	}

	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		pruner.Start(ctx)
	}()

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	<-prunerDone

	logger.Info("scheduler shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
