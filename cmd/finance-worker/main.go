package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fleetfinance/internal/amqp"
	"fleetfinance/internal/cli"
	"fleetfinance/internal/log"
	"fleetfinance/internal/services"
	"fleetfinance/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)

	logger.Info("Starting finance-worker", "backend", cfg.DataBackend)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Worker is using a private memory backend; totals will not reflect records written by the API")
	}

	be := cli.InitBackend(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	aggregator := services.NewAggregator(be.Stores, logger)
	reportWorker := worker.NewReportWorker(aggregator, logger)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(ctx context.Context) {
		reportWorker.LogSnapshot(ctx)
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := be.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	go func() {
		err := amqpClient.ConsumeRecordEvents(ctx, reportWorker.HandleRecordEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.WorkerSnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reportWorker.LogSnapshot(ctx)
			}
		}
	}()

	logger.Info("Finance worker consuming record events", "queue", cfg.AMQPQueue)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Finance worker stopped")
}
