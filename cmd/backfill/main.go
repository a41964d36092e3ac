// Command backfill computes thermal-stress indices for a historic station
// export and writes the resulting station events as JSON and/or into the
// SQLite history store. It runs rows through the same parsing and enrichment
// code as the streaming pipeline, so backfilled records match live ones.
//
// Usage:
//
//	go run ./cmd/backfill \
//	  -csv data/historic/uni_park_2024.csv \
//	  -station-id UNI-PARK -lat -25.7545 -lon 28.2314 \
//	  -out data/backfill/uni_park_2024.json \
//	  -sqlite data/history.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/heat-stress-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
)

const loadChunk = 500

type options struct {
	csvPath     string
	station     station
	outPath     string
	fixturePath string
	sqlitePath  string
	workers     int
}

func main() {
	var opts options
	flag.StringVar(&opts.csvPath, "csv", "", "historic station CSV export with a Date/Time column")
	flag.StringVar(&opts.station.id, "station-id", "", "station identifier")
	flag.StringVar(&opts.station.name, "station-name", "", "station display name")
	flag.Float64Var(&opts.station.lat, "lat", 0, "station latitude")
	flag.Float64Var(&opts.station.lon, "lon", 0, "station longitude")
	flag.StringVar(&opts.outPath, "out", "", "output path for enriched station events (JSON)")
	flag.StringVar(&opts.fixturePath, "fixture-out", "", "output path for raw station records, usable as a pipeline fixture")
	flag.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite history store to load events into")
	flag.IntVar(&opts.workers, "workers", 0, "index workers (0 = GOMAXPROCS)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := observability.NewLogger(*logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("missing required flags: -csv, -station-id, and one of -out, -fixture-out, -sqlite")

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.csvPath == "" || opts.station.id == "" ||
		(opts.outPath == "" && opts.fixturePath == "" && opts.sqlitePath == "") {
		return errUsage
	}

	f, err := os.Open(opts.csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, skipped, err := readHistoricCSV(f, opts.station)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.csvPath, err)
	}
	logger.Info("historic export read", "file", opts.csvPath, "rows", len(records), "skipped", skipped)

	if opts.fixturePath != "" {
		if err := writeJSON(opts.fixturePath, records); err != nil {
			return fmt.Errorf("write fixture: %w", err)
		}
		logger.Info("wrote raw fixture", "path", opts.fixturePath)
	}

	events, err := buildEvents(ctx, records, thermal.NewEngine(nil), opts.workers)
	if err != nil {
		return err
	}

	if opts.outPath != "" {
		if err := writeJSON(opts.outPath, events); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
		logger.Info("wrote station events", "path", opts.outPath, "count", len(events))
	}

	if opts.sqlitePath != "" {
		if err := loadStore(ctx, opts.sqlitePath, events, logger); err != nil {
			return err
		}
	}

	logSummaries(logger, domain.SummarizeMonths(events))
	return nil
}

// buildEvents parses each record the way the pipeline parses a message and
// enriches the batch in parallel.
func buildEvents(ctx context.Context, records []domain.RawStationRecord, engine *thermal.Engine, workers int) ([]domain.StationEvent, error) {
	parsed := make([]domain.StationEvent, 0, len(records))
	for i := range records {
		value, err := json.Marshal(records[i])
		if err != nil {
			return nil, fmt.Errorf("marshal record %d: %w", i, err)
		}
		event, err := domain.ParseRawEvent(domain.RawEvent{Key: []byte(records[i].StationID), Value: value})
		if err != nil {
			return nil, fmt.Errorf("parse record %d: %w", i, err)
		}
		// Backfilled events are persisted without their source payload.
		event.RawPayload = nil
		parsed = append(parsed, event)
	}

	events, err := domain.EnrichStationEvents(ctx, parsed, engine, workers)
	if err != nil {
		return nil, fmt.Errorf("compute indices: %w", err)
	}
	return events, nil
}

func loadStore(ctx context.Context, path string, events []domain.StationEvent, logger *slog.Logger) error {
	store, err := sqlite.Open(path, logger, nil)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	for start := 0; start < len(events); start += loadChunk {
		end := min(start+loadChunk, len(events))
		if err := store.LoadBatch(ctx, events[start:end]); err != nil {
			return fmt.Errorf("load events %d-%d: %w", start, end, err)
		}
	}
	logger.Info("loaded history store", "path", path, "count", len(events))
	return nil
}

func logSummaries(logger *slog.Logger, summaries []domain.MonthlySummary) {
	for i := range summaries {
		s := &summaries[i]
		logger.Info("monthly summary",
			"station_id", s.StationID,
			"month", s.Month,
			"readings", s.Readings,
			"max_temperature_c", deref(s.MaxTemperatureC),
			"days_above_35c", s.DaysAbove35C,
			"max_utci", deref(s.MaxUTCI),
			"max_heat_index", deref(s.MaxHeatIndex),
		)
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
