package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
)

// ErrMissingStationID is returned for records without a station identifier.
var ErrMissingStationID = errors.New("missing station_id")

// timestampLayouts are the formats accepted for RawStationRecord.Timestamp.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseRawEvent deserializes a RawEvent's value into a StationEvent.
// It expects the JSON document produced by the station collector.
func ParseRawEvent(raw RawEvent) (StationEvent, error) {
	var rec RawStationRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return StationEvent{}, fmt.Errorf("parse raw event: %w", err)
	}

	rec.StationID = strings.TrimSpace(rec.StationID)
	if rec.StationID == "" {
		return StationEvent{}, fmt.Errorf("parse raw event: %w", ErrMissingStationID)
	}

	observedAt := parseTimestamp(rec.Timestamp, raw.Timestamp)

	return StationEvent{
		ID:          generateID(rec.StationID, observedAt),
		StationID:   rec.StationID,
		StationName: strings.TrimSpace(rec.StationName),
		Geo:         Geo{Lat: rec.Lat, Lon: rec.Lon},
		ObservedAt:  observedAt,
		Readings:    resolveReadings(rec),
		Conditions:  resolveConditions(rec),

		RawPayload: raw.Value,
	}, nil
}

// resolveReadings takes each reading from its flat field when present and
// falls back to the matching sensor column.
func resolveReadings(rec RawStationRecord) thermal.Observation {
	fromSensors := ObservationFromSensors(rec.Sensors)
	return thermal.Observation{
		AirTemperatureC:     firstNonNil(rec.AirTemperatureC, fromSensors.AirTemperatureC),
		RelativeHumidityPct: firstNonNil(rec.RelativeHumidityPct, fromSensors.RelativeHumidityPct),
		WindSpeedMS:         firstNonNil(rec.WindSpeedMS, fromSensors.WindSpeedMS),
		SolarRadiationWM2:   firstNonNil(rec.SolarRadiationWM2, fromSensors.SolarRadiationWM2),
	}
}

// resolveConditions applies the flat-field-first rule of resolveReadings to
// precipitation and wind extremes.
func resolveConditions(rec RawStationRecord) Conditions {
	fromSensors := ConditionsFromSensors(rec.Sensors)
	return Conditions{
		PrecipitationMM: firstNonNil(rec.PrecipitationMM, fromSensors.PrecipitationMM),
		WindSpeedMaxMS:  firstNonNil(rec.WindSpeedMaxMS, fromSensors.WindSpeedMaxMS),
		WindGustMS:      firstNonNil(rec.WindGustMS, fromSensors.WindGustMS),
	}
}

func firstNonNil(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

// parseTimestamp parses the record timestamp, falling back to the message
// timestamp when it is empty or unparseable. The result is in UTC.
func parseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

// generateID produces a deterministic ID from the station and observation
// time, so replays of the same reading map onto the same record.
func generateID(stationID string, observedAt time.Time) string {
	input := fmt.Sprintf("%s|%s", stationID, observedAt.UTC().Format(time.RFC3339Nano))
	hash := sha256.Sum256([]byte(input))
	return stationID + "-" + hex.EncodeToString(hash[:8])
}

// EnrichStationEvent computes the thermal-stress indices for a parsed event
// and assigns its hourly time bucket and processing time. When the indices
// are unavailable, IndexError records why.
func EnrichStationEvent(event StationEvent, engine *thermal.Engine) StationEvent {
	indices, err := engine.Evaluate(event.Readings)
	event.Indices = indices
	event.IndexError = ""
	if err != nil {
		event.IndexError = err.Error()
	}
	event.TimeBucket = deriveTimeBucket(event.ObservedAt)
	event.ProcessedAt = clock.Now()
	return event
}

// EnrichStationEvents enriches a batch like EnrichStationEvent, computing
// the indices on up to workers goroutines. Input order is preserved and every
// event shares one processing time.
func EnrichStationEvents(ctx context.Context, events []StationEvent, engine *thermal.Engine, workers int) ([]StationEvent, error) {
	obs := make([]thermal.Observation, len(events))
	for i := range events {
		obs[i] = events[i].Readings
	}
	results, err := engine.ComputeAll(ctx, obs, workers)
	if err != nil {
		return nil, err
	}

	now := clock.Now()
	out := make([]StationEvent, len(events))
	for i, e := range events {
		e.Indices = results[i]
		e.IndexError = ""
		if !results[i].Available() {
			// Re-evaluate the failures alone to recover the reason.
			if _, err := engine.Evaluate(e.Readings); err != nil {
				e.IndexError = err.Error()
			}
		}
		e.TimeBucket = deriveTimeBucket(e.ObservedAt)
		e.ProcessedAt = now
		out[i] = e
	}
	return out, nil
}

// deriveTimeBucket truncates to the hour in UTC, formatted as RFC3339.
func deriveTimeBucket(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Hour).Format(time.RFC3339)
}
