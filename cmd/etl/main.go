package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/heat-stress-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/heat-stress-etl/internal/adapter/kafka"
	"github.com/couchcryptid/heat-stress-etl/internal/adapter/mapbox"
	mqttadapter "github.com/couchcryptid/heat-stress-etl/internal/adapter/mqtt"
	"github.com/couchcryptid/heat-stress-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/heat-stress-etl/internal/config"
	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/pipeline"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	"github.com/joho/godotenv"
)

// source is a pipeline extractor that owns a connection.
type source interface {
	pipeline.BatchExtractor
	io.Closer
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug("no .env file loaded, using process environment")
	}
	metrics := observability.NewMetrics()
	engine := thermal.NewEngine(nil)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var src source
	switch cfg.Source {
	case config.SourceMQTT:
		sub := mqttadapter.NewSubscriber(cfg, logger)
		if err := sub.Connect(ctx); err != nil {
			logger.Error("mqtt connect failed", "error", err)
			os.Exit(1)
		}
		src = sub
	default:
		src = kafkaadapter.NewReader(cfg, logger)
	}
	logger.Info("source configured", "source", cfg.Source)

	writer := kafkaadapter.NewWriter(cfg, logger)
	loader := pipeline.NewFanOutLoader("kafka", writer)

	var store *sqlite.Store
	var reports httpadapter.ReportStore
	if cfg.SQLitePath != "" {
		store, err = sqlite.Open(cfg.SQLitePath, logger, metrics)
		if err != nil {
			logger.Error("failed to open history store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		loader.Add("sqlite", store)
		reports = store
		logger.Info("history store enabled", "path", cfg.SQLitePath)
	}

	transformer := pipeline.NewTransformer(engine, geocoder, logger, metrics)
	p := pipeline.New(src, transformer, loader, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, engine, cfg.IndexWorkers, reports, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
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
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := src.Close(); err != nil {
		logger.Error("source close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("history store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
