// Command resolver consumes extracted security-incident records from Kafka,
// assigns each one an authoritative coordinate and precision level, and
// publishes the resolved locations while persisting candidates and
// resolutions to the SQLite warehouse.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andeanwatch/incident-geo/internal/adapter/azuremaps"
	httpadapter "github.com/andeanwatch/incident-geo/internal/adapter/http"
	kafkaadapter "github.com/andeanwatch/incident-geo/internal/adapter/kafka"
	"github.com/andeanwatch/incident-geo/internal/config"
	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/gazetteer"
	"github.com/andeanwatch/incident-geo/internal/match"
	"github.com/andeanwatch/incident-geo/internal/observability"
	"github.com/andeanwatch/incident-geo/internal/pipeline"
	"github.com/andeanwatch/incident-geo/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	places, err := gazetteer.Load(cfg.GazetteerPath, logger)
	if err != nil {
		logger.Error("failed to load gazetteer", "path", cfg.GazetteerPath, "error", err)
		os.Exit(1)
	}
	index := gazetteer.Build(places, logger)
	logger.Info("gazetteer loaded", "places", index.Len(), "path", cfg.GazetteerPath)

	warehouse, err := store.New(cfg.SQLitePath, logger)
	if err != nil {
		logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer warehouse.Close()

	// External geocoding is feature-flagged via AZURE_MAPS_ENABLED /
	// AZURE_MAPS_KEY; without it the chain degrades to the gazetteer tiers.
	var geocoder domain.Geocoder
	if cfg.AzureMapsEnabled {
		client := azuremaps.NewClient(cfg.AzureMapsKey, cfg.AzureMapsTimeout, cfg.AzureMapsRPS, metrics, logger)
		geocoder = azuremaps.NewCachedGeocoder(client, cfg.AzureMapsCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("azure maps geocoding enabled",
			"cache_size", cfg.AzureMapsCacheSize,
			"timeout", cfg.AzureMapsTimeout,
			"rps", cfg.AzureMapsRPS)
	} else {
		logger.Info("azure maps geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	scorer := match.NewScorer(index, cfg.TopK, cfg.ScanBody)
	resolver := domain.NewResolver(index, geocoder, logger)
	processor := pipeline.NewProcessor(scorer, resolver, warehouse, cfg.AmbiguityGap, metrics, logger)

	p := pipeline.New(reader, processor, writer, logger, metrics, cfg.BatchSize, cfg.WorkerCount)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, warehouse, index, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start resolver pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
