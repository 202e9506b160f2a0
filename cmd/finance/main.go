package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fleetfinance/internal/cache"
	"fleetfinance/internal/cli"
	"fleetfinance/internal/fleet"
	apphttp "fleetfinance/internal/http"
	"fleetfinance/internal/log"
	"fleetfinance/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	logger.Info("Starting finance service", "port", cfg.Port, "backend", cfg.DataBackend)

	be := cli.InitBackend(context.Background(), logger, cfg)

	registrations := cache.NewLRUCache[string](cfg.RegistrationCacheSize, cfg.RegistrationCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(registrations)
	cacheManager.StartCleanup(cfg.RegistrationCacheTTL)

	fleetClient := fleet.NewClient(
		fleet.WithBaseURL(cfg.FleetServiceURL),
		fleet.WithTimeout(cfg.FleetLookupTimeout),
		fleet.WithRateLimit(cfg.FleetRateLimit),
		fleet.WithCache(registrations),
		fleet.WithLogger(logger),
	)

	var events services.EventPublisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		events = amqpClient
	}

	aggregator := services.NewAggregator(be.Stores, logger)
	reports := services.NewReportBuilder(aggregator, fleetClient,
		services.WithLookupTimeout(cfg.FleetLookupTimeout),
		services.WithReportLogger(logger),
	)
	records := services.NewRecords(be.Stores, events, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Reports:            reports,
		Aggregator:         aggregator,
		Records:            records,
		Health:             be.Health,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := be.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Finance service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
