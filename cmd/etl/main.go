package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/lake-evaporation-etl/internal/adapter/http"
	"github.com/couchcryptid/lake-evaporation-etl/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/lake-evaporation-etl/internal/adapter/kafka"
	"github.com/couchcryptid/lake-evaporation-etl/internal/adapter/portal"
	"github.com/couchcryptid/lake-evaporation-etl/internal/config"
	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
	"github.com/couchcryptid/lake-evaporation-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := portal.NewClient(portal.Options{
		BaseURL:      cfg.APIBaseURL,
		Username:     cfg.APIUsername,
		Email:        cfg.APIEmail,
		Password:     cfg.APIPassword,
		Timeout:      cfg.APITimeout,
		MaxRetries:   cfg.APIMaxRetries,
		DiscoveryTag: cfg.DiscoveryTag,
	}, logger, metrics)

	resolver, err := newResolver(cfg, client, logger, metrics)
	if err != nil {
		logger.Error("invalid raster configuration", "error", err)
		os.Exit(1)
	}

	constants := domain.CalculationConstants{
		Albedo:          cfg.Albedo,
		AngstromA:       cfg.AngstromA,
		AngstromB:       cfg.AngstromB,
		LakeCoefficient: cfg.LakeCoefficient,
	}
	if err := constants.Validate(); err != nil {
		logger.Error("invalid calculation constants", "error", err)
		os.Exit(1)
	}
	processor := pipeline.NewProcessor(client, resolver, constants, logger, metrics)

	sinks := []pipeline.Sink{{Name: "portal", Loader: client}}
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: kafkaWriter})
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}
	var influxWriter *influx.Writer
	if cfg.InfluxEnabled {
		influxWriter, err = influx.NewWriter(ctx, cfg, logger)
		if err != nil {
			logger.Error("influxdb sink unavailable", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, pipeline.Sink{Name: "influxdb", Loader: influxWriter})
		logger.Info("influxdb sink enabled", "bucket", cfg.InfluxBucket)
	}

	p := pipeline.New(client, processor, sinks, pipeline.Options{
		Timezone:     cfg.Timezone,
		RunHour:      cfg.RunHour,
		RunAtStartup: cfg.RunAtStartup,
		DryRun:       cfg.DryRun,
	}, logger, metrics)

	closeAll := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := client.Logout(shutdownCtx); err != nil {
			logger.Error("portal logout error", "error", err)
		}
		if kafkaWriter != nil {
			if err := kafkaWriter.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		if influxWriter != nil {
			influxWriter.Close()
		}
	}

	// One-shot mode for backfills and cron-driven deployments.
	if cfg.RunOnce || cfg.TargetDate != nil {
		_, err := p.RunOnce(ctx, cfg.TargetDate)
		closeAll()
		if err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduler.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeAll()

	logger.Info("shutdown complete")
}

func newResolver(cfg *config.Config, client *portal.Client, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Resolver, error) {
	if !cfg.RasterEnabled {
		logger.Info("raster fallback disabled")
		return nil, nil
	}
	params, err := domain.RasterParametersWith(cfg.RasterParameters)
	if err != nil {
		return nil, err
	}
	settings := pipeline.RasterSettings{
		Enabled:       cfg.RasterEnabled,
		UseAsFallback: cfg.RasterUseAsFallback,
		DatasourceID:  cfg.RasterDatasourceID,
		Models: domain.RasterModels{
			Europe:         cfg.RasterModelEurope,
			EuropeFallback: cfg.RasterModelFallback,
			Global:         cfg.RasterModelGlobal,
		},
		Parameters:  params,
		ExtractMode: cfg.RasterExtractMode,
	}
	logger.Info("raster fallback enabled",
		"datasource_id", settings.DatasourceID,
		"europe_model", settings.Models.Europe,
		"global_model", settings.Models.Global,
	)
	return pipeline.NewResolver(portal.NewCachedCatalogue(client, metrics), client, settings, logger, metrics), nil
}
