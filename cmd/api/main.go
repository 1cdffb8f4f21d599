package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	checkoutcontrollers "github.com/thieenjdev03/ecom-client-sub002/api/controllers/checkout"
	"github.com/thieenjdev03/ecom-client-sub002/api/routes"
	"github.com/thieenjdev03/ecom-client-sub002/internal/checkout"
	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/poller"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/config"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/metrics"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "checkout-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "checkout-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	orders, err := gateway.NewClient(cfg.Backend.BaseURL,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		gateway.WithLogger(logg),
		gateway.WithMetrics(checkoutMetrics),
	)
	if err != nil {
		return fmt.Errorf("create order gateway: %w", err)
	}

	statusPoller, err := poller.New(poller.Params{
		Fetcher:     orders,
		MaxAttempts: cfg.Poll.MaxAttempts,
		Interval:    cfg.Poll.Interval,
		Logger:      logg,
		Metrics:     checkoutMetrics,
	})
	if err != nil {
		return fmt.Errorf("create status poller: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
	} else {
		logg.Warn(ctx, "redis not configured, idempotent replays disabled")
	}

	sessions, err := checkoutcontrollers.NewRegistry(checkoutcontrollers.RegistryParams{
		TTL:    cfg.Checkout.SessionTTL + cfg.Checkout.ResultRetention,
		Wait:   cfg.Checkout.CreateWait,
		Logger: logg,
		NewSession: func(widget checkout.Widget) (*checkout.Session, error) {
			return checkout.NewSession(checkout.Params{
				Gateway: orders,
				Poller:  statusPoller,
				Widget:  widget,
				Logger:  logg,
				Metrics: checkoutMetrics,
			})
		},
	})
	if err != nil {
		return fmt.Errorf("create session registry: %w", err)
	}
	go func() {
		if err := sessions.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweep stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, sessions, redisClient, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"backend":  cfg.Backend.BaseURL,
		"poll_max": cfg.Poll.MaxAttempts,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	runErr = multierr.Combine(
		runErr,
		server.Shutdown(shutdownCtx),
		sessions.Close(shutdownCtx),
	)
	if redisClient != nil {
		runErr = multierr.Append(runErr, redisClient.Close())
	}
	if runErr == nil {
		logg.Info(logCtx, "api server stopped")
	}
	return runErr
}
