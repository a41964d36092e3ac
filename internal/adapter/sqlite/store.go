// Package sqlite persists station events to a SQLite history database and
// serves the history and monthly report queries.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-station-event.sql
var insertStationEventSQL string

//go:embed sql/get-station-events.sql
var getStationEventsSQL string

//go:embed sql/get-events-between.sql
var getEventsBetweenSQL string

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the SQLite history store. It implements pipeline.BatchLoader.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an in-process database.
func Open(path string, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, logger: logger, metrics: metrics}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadBatch inserts the events in one transaction. Events whose ID already
// exists are skipped, so replayed batches are harmless.
func (s *Store) LoadBatch(ctx context.Context, events []domain.StationEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertStationEventSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted, duplicates int
	for i := range events {
		res, err := stmt.ExecContext(ctx, insertArgs(&events[i])...)
		if err != nil {
			s.countWrite("error", 1)
			return fmt.Errorf("insert station event %s: %w", events[i].ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		s.countWrite("error", len(events))
		return fmt.Errorf("commit: %w", err)
	}

	s.countWrite("inserted", inserted)
	s.countWrite("duplicate", duplicates)
	if duplicates > 0 {
		s.logger.Debug("skipped duplicate station events", "count", duplicates)
	}
	return nil
}

// StationEvents returns one station's events observed in [from, to), oldest
// first.
func (s *Store) StationEvents(ctx context.Context, stationID string, from, to time.Time) ([]domain.StationEvent, error) {
	rows, err := s.db.QueryContext(ctx, getStationEventsSQL, stationID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("query station events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close station event rows", "error", err)
		}
	}()
	return scanStationEvents(rows)
}

// MonthlySummaries aggregates every station's events in the UTC calendar
// month containing month.
func (s *Store) MonthlySummaries(ctx context.Context, month time.Time) ([]domain.MonthlySummary, error) {
	m := month.UTC()
	start := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	rows, err := s.db.QueryContext(ctx, getEventsBetweenSQL, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("query month events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close month event rows", "error", err)
		}
	}()

	events, err := scanStationEvents(rows)
	if err != nil {
		return nil, err
	}
	return domain.SummarizeMonths(events), nil
}

func (s *Store) countWrite(outcome string, n int) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.StoreWrites.WithLabelValues(outcome).Add(float64(n))
}

func insertArgs(e *domain.StationEvent) []any {
	return []any{
		e.ID,
		e.StationID,
		nullString(e.StationName),
		e.Geo.Lat,
		e.Geo.Lon,
		formatTime(e.ObservedAt),
		nullString(e.TimeBucket),
		nullFloat(e.Readings.AirTemperatureC),
		nullFloat(e.Readings.RelativeHumidityPct),
		nullFloat(e.Readings.WindSpeedMS),
		nullFloat(e.Readings.SolarRadiationWM2),
		nullFloat(e.Conditions.PrecipitationMM),
		nullFloat(e.Conditions.WindSpeedMaxMS),
		nullFloat(e.Conditions.WindGustMS),
		nullFloat(e.Indices.UTCI),
		nullFloat(e.Indices.HeatIndex),
		nullString(string(e.Indices.UTCIStress)),
		nullString(string(e.Indices.HeatIndexStress)),
		nullString(e.IndexError),
		nullString(e.FormattedAddress),
		nullString(e.PlaceName),
		e.GeoConfidence,
		nullString(e.GeoSource),
		formatTime(e.ProcessedAt),
	}
}

func scanStationEvents(rows *sql.Rows) ([]domain.StationEvent, error) {
	var out []domain.StationEvent
	for rows.Next() {
		var (
			e                                       domain.StationEvent
			observedAt, processedAt                 string
			name, bucket, utciStress, hiStress      sql.NullString
			indexErr, address, place, geoSource     sql.NullString
			lat, lon, geoConfidence                 sql.NullFloat64
			temp, humidity, wind, solar, utci, heat sql.NullFloat64
			precip, windMax, gust                   sql.NullFloat64
		)
		if err := rows.Scan(
			&e.ID, &e.StationID, &name, &lat, &lon, &observedAt, &bucket,
			&temp, &humidity, &wind, &solar,
			&precip, &windMax, &gust,
			&utci, &heat, &utciStress, &hiStress, &indexErr,
			&address, &place, &geoConfidence, &geoSource, &processedAt,
		); err != nil {
			return nil, fmt.Errorf("scan station event: %w", err)
		}

		var err error
		if e.ObservedAt, err = parseTime(observedAt); err != nil {
			return nil, err
		}
		if e.ProcessedAt, err = parseTime(processedAt); err != nil {
			return nil, err
		}

		e.StationName = name.String
		e.Geo = domain.Geo{Lat: lat.Float64, Lon: lon.Float64}
		e.TimeBucket = bucket.String
		e.Readings = thermal.Observation{
			AirTemperatureC:     floatPtr(temp),
			RelativeHumidityPct: floatPtr(humidity),
			WindSpeedMS:         floatPtr(wind),
			SolarRadiationWM2:   floatPtr(solar),
		}
		e.Conditions = domain.Conditions{
			PrecipitationMM: floatPtr(precip),
			WindSpeedMaxMS:  floatPtr(windMax),
			WindGustMS:      floatPtr(gust),
		}
		e.Indices = thermal.IndexResult{
			UTCI:            floatPtr(utci),
			HeatIndex:       floatPtr(heat),
			UTCIStress:      thermal.Stress(utciStress.String),
			HeatIndexStress: thermal.Stress(hiStress.String),
		}
		e.IndexError = indexErr.String
		e.FormattedAddress = address.String
		e.PlaceName = place.String
		e.GeoConfidence = geoConfidence.Float64
		e.GeoSource = geoSource.String

		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
