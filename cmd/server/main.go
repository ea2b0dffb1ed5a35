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
	"github.com/ErlanBelekov/marketplace/internal/email"
	"github.com/ErlanBelekov/marketplace/internal/health"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/marketplace/internal/log"
	"github.com/ErlanBelekov/marketplace/internal/metrics"
	"github.com/ErlanBelekov/marketplace/internal/scheduler"
	"github.com/ErlanBelekov/marketplace/internal/session"
	"github.com/ErlanBelekov/marketplace/internal/token"
	httptransport "github.com/ErlanBelekov/marketplace/internal/transport/http"
	"github.com/ErlanBelekov/marketplace/internal/transport/http/handler"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	st, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	images, localImages, err := openImages(ctx, cfg, logger, st.Pingers)
	if err != nil {
		stop()
		st.Close()
		log.Fatalf("images: %v", err)
	}

	tokens := token.NewService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	guard := session.NewGuard(tokens, st.Users)
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	authUsecase := usecase.NewAuthUsecase(st.Users, tokens, sender, cfg.BcryptCost, logger)
	userUsecase := usecase.NewUserUsecase(st.Users, cfg.BcryptCost, logger)
	listingUsecase := usecase.NewListingUsecase(st.Listings, st.Users, images, logger)

	pruner, err := scheduler.NewPruner(st.Users, cfg.PruneSchedule, logger)
	if err != nil {
		stop()
		st.Close()
		log.Fatalf("pruner: %v", err)
	}

	metrics.Register()
	checker := health.NewChecker(st.Pingers, logger, prometheus.DefaultRegisterer)

	handlers := httptransport.Handlers{
		Auth:      handler.NewAuthHandler(authUsecase, logger),
		Users:     handler.NewUserHandler(userUsecase, logger),
		Listings:  handler.NewListingHandler(listingUsecase, logger),
		Liveness:  checker.LivenessHandler(),
		Readiness: checker.ReadinessHandler(),
	}
	if localImages != nil {
		handlers.Images = handler.NewImageHandler(localImages)
	}

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, guard, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	prunerDone := make(chan struct{})
	if cfg.EmbeddedPruner {
		go func() {
			defer close(prunerDone)
			pruner.Start(ctx)
		}()
	} else {
		if !st.Shared() {
			logger.Warn("embedded pruner disabled with a process-local store, revoked tokens will not be pruned")
		}
		close(prunerDone)
	}

	go func() {
		logger.Info("server started", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	<-prunerDone
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
