package domain

import (
	"context"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
)

// RawStationRecord is the JSON document published by the station collector
// for one reading. Readings may arrive as flat fields, as vendor sensor
// columns, or both; flat fields win.
type RawStationRecord struct {
	StationID   string  `json:"station_id"`
	StationName string  `json:"station_name,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`

	AirTemperatureC     *float64 `json:"air_temperature_c,omitempty"`
	RelativeHumidityPct *float64 `json:"relative_humidity_pct,omitempty"`
	WindSpeedMS         *float64 `json:"wind_speed_ms,omitempty"`
	SolarRadiationWM2   *float64 `json:"solar_radiation_wm2,omitempty"`

	PrecipitationMM *float64 `json:"precipitation_mm,omitempty"`
	WindSpeedMaxMS  *float64 `json:"wind_speed_max_ms,omitempty"`
	WindGustMS      *float64 `json:"wind_gust_ms,omitempty"`

	// Sensors maps vendor column names such as "HC Air temperature (avg)"
	// to their values. Null values are absent readings.
	Sensors map[string]*float64 `json:"sensors,omitempty"`
}

// RawEvent represents an unprocessed message from the source.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// Conditions holds the readings that feed the monthly report but not the
// thermal indices.
type Conditions struct {
	PrecipitationMM *float64 `json:"precipitation_mm,omitempty"`
	WindSpeedMaxMS  *float64 `json:"wind_speed_max_ms,omitempty"`
	WindGustMS      *float64 `json:"wind_gust_ms,omitempty"`
}

// StationEvent is one station reading with its thermal-stress indices.
type StationEvent struct {
	ID          string              `json:"id"`
	StationID   string              `json:"station_id"`
	StationName string              `json:"station_name,omitempty"`
	Geo         Geo                 `json:"geo"`
	ObservedAt  time.Time           `json:"observed_at"`
	TimeBucket  string              `json:"time_bucket,omitempty"`
	Readings    thermal.Observation `json:"readings"`
	Conditions  Conditions          `json:"conditions"`
	Indices     thermal.IndexResult `json:"indices"`
	IndexError  string              `json:"index_error,omitempty"`

	// Place enrichment fields.
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "reverse", "original", "failed"

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}
