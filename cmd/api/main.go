package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/seatshield/ticket-fraud-backend/internal/api/rest"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/config"
	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/telemetry"
)

func main() {
	// Configuration comes from configs/config.yaml plus TFB_ environment
	// overrides. Schema changes are applied separately by cmd/migrate.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx := context.Background()
	telConfig := &telemetry.Config{
		ServiceName:    "ticket-fraud-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	}

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telConfig)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down telemetry", "error", err)
		}
	}()

	logger.Info("starting ticket fraud backend",
		"version", cfg.Version,
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	server, err := rest.NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Blocks until SIGINT/SIGTERM, then drains in-flight requests.
	if err := server.Start(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
