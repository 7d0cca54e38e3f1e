package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/api/router"
	appconfig "github.com/khakanhyder/schedule-pro-web-app-sub005/internal/config"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/confirmation"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/http/handlers"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/observability/metrics"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/payments"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/refdata"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/sessions"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

func main() {
	// Load .env if present (local development)
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting schedule-pro booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Session snapshot store: Redis when configured, in-process otherwise.
	var sessionStore sessions.Store
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		cancel()
		sessionStore = sessions.NewRedisStore(rdb, cfg.SessionTTL)
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	} else {
		sessionStore = sessions.NewMemoryStore(cfg.SessionTTL)
		logger.Warn("REDIS_ADDR not set, sessions are in-process only")
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	refdataClient := refdata.NewClient(cfg.BookingAPIBaseURL, logger)
	intentClient := payments.NewIntentClient(cfg.PaymentsAPIBaseURL, logger)
	finalizer := confirmation.NewFinalizer(cfg.BookingAPIBaseURL, logger).
		WithDefaultDuration(cfg.AppointmentDurationMins)

	var confirmer payments.CardConfirmer
	if cfg.AllowFakePayments && cfg.Env != "production" {
		confirmer = payments.NewFakeCardConfirmer(logger)
		logger.Warn("fake card confirmer enabled; card tokens are confirmed in-process")
	}

	wizardHandler := handlers.NewWizardHandler(handlers.WizardHandlerConfig{
		Sessions:      sessionStore,
		Refdata:       refdataClient,
		Intents:       intentClient,
		Finalizer:     finalizer,
		Confirmer:     confirmer,
		Metrics:       bookingMetrics,
		Logger:        logger,
		TipPercentage: cfg.DefaultTipPercentage,
		CashShortPath: cfg.ProgressCountsCashShortPath,
	})

	r := router.New(&router.Config{
		Logger:             logger,
		Wizard:             wizardHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
