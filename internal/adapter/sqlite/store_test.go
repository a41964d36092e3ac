package sqlite

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func openTestStore(t *testing.T) (*Store, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	s, err := Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, m
}

func makeEvent(id, station string, observedAt time.Time, temp float64) domain.StationEvent {
	obs := thermal.Observation{
		AirTemperatureC:     ptr(temp),
		RelativeHumidityPct: ptr(40),
		WindSpeedMS:         ptr(3),
		SolarRadiationWM2:   ptr(800),
	}
	return domain.StationEvent{
		ID:          id,
		StationID:   station,
		StationName: station + " station",
		Geo:         domain.Geo{Lat: -25.75, Lon: 28.23},
		ObservedAt:  observedAt,
		TimeBucket:  observedAt.Truncate(time.Hour).Format(time.RFC3339),
		Readings:    obs,
		Indices:     thermal.ComputeIndices(obs),
		GeoSource:   "original",
		ProcessedAt: observedAt.Add(time.Minute),
	}
}

func TestLoadBatch_RoundTrip(t *testing.T) {
	s, m := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 7, 15, 14, 0, 0, 123456789, time.UTC)

	full := makeEvent("a-1", "UNI-PARK", at, 35)
	full.PlaceName = "Hatfield"
	full.FormattedAddress = "Hatfield, Pretoria, South Africa"
	full.GeoConfidence = 1
	full.GeoSource = "reverse"
	full.Conditions = domain.Conditions{PrecipitationMM: ptr(12.5), WindSpeedMaxMS: ptr(6.1), WindGustMS: ptr(14)}

	partial := domain.StationEvent{
		ID:          "a-2",
		StationID:   "UNI-PARK",
		ObservedAt:  at.Add(time.Hour),
		Readings:    thermal.Observation{AirTemperatureC: ptr(30)},
		IndexError:  "incomplete observation: relative humidity",
		ProcessedAt: at.Add(time.Hour),
	}

	require.NoError(t, s.LoadBatch(ctx, []domain.StationEvent{full, partial}))

	got, err := s.StationEvents(ctx, "UNI-PARK", at.Add(-time.Hour), at.Add(2*time.Hour))
	require.NoError(t, err)

	want := []domain.StationEvent{full, partial}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StationEvents mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got[1].Indices.UTCI)
	assert.Nil(t, got[1].Conditions.PrecipitationMM)
	assert.False(t, got[1].Indices.UTCIStress.Available())
	assert.InDelta(t, 2, testutil.ToFloat64(m.StoreWrites.WithLabelValues("inserted")), 0)
}

func TestLoadBatch_DuplicatesIgnored(t *testing.T) {
	s, m := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 7, 15, 14, 0, 0, 0, time.UTC)
	batch := []domain.StationEvent{makeEvent("dup", "UNI-PARK", at, 35)}

	require.NoError(t, s.LoadBatch(ctx, batch))
	require.NoError(t, s.LoadBatch(ctx, batch))

	got, err := s.StationEvents(ctx, "UNI-PARK", at, at.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StoreWrites.WithLabelValues("inserted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StoreWrites.WithLabelValues("duplicate")), 0)
}

func TestLoadBatch_Empty(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.LoadBatch(context.Background(), nil))
}

func TestStationEvents_WindowAndStation(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.LoadBatch(ctx, []domain.StationEvent{
		makeEvent("1", "A", base, 20),
		makeEvent("2", "A", base.Add(500*time.Millisecond), 21),
		makeEvent("3", "A", base.Add(time.Hour), 22),
		makeEvent("4", "B", base.Add(time.Minute), 23),
	}))

	got, err := s.StationEvents(ctx, "A", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestMonthlySummaries(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	jul := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	wet := makeEvent("2", "A", jul.Add(24*time.Hour), 31)
	wet.Conditions = domain.Conditions{PrecipitationMM: ptr(30), WindGustMS: ptr(20)}
	lateWet := makeEvent("3", "A", jul.AddDate(0, 0, 30).Add(11*time.Hour+59*time.Minute), 25)
	lateWet.Conditions = domain.Conditions{PrecipitationMM: ptr(25)}

	require.NoError(t, s.LoadBatch(ctx, []domain.StationEvent{
		makeEvent("1", "B", jul, 36),
		wet,
		lateWet,
		makeEvent("4", "A", jul.AddDate(0, 1, 0), 41),
	}))

	got, err := s.MonthlySummaries(ctx, time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].StationID)
	assert.Equal(t, "2024-07", got[0].Month)
	assert.Equal(t, 2, got[0].Readings)
	assert.Equal(t, 1, got[0].DaysAbove30C)
	assert.Equal(t, "A station", got[0].StationName)
	require.NotNil(t, got[0].PrecipitationTotalMM)
	assert.InDelta(t, 55, *got[0].PrecipitationTotalMM, 1e-9)
	assert.InDelta(t, 30, *got[0].MaxPrecipitation5DayMM, 1e-9)
	assert.False(t, got[0].FloodWarning)
	assert.InDelta(t, 10.8, *got[0].AvgWindSpeedKMH, 1e-9)
	assert.InDelta(t, 72, *got[0].MaxWindGustKMH, 1e-9)
	assert.Nil(t, got[0].MaxWindSpeedMaxKMH)

	assert.Equal(t, "B", got[1].StationID)
	assert.Equal(t, 1, got[1].DaysAbove35C)
	assert.Nil(t, got[1].PrecipitationTotalMM)
}

func TestMonthlySummaries_Empty(t *testing.T) {
	s, _ := openTestStore(t)
	got, err := s.MonthlySummaries(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen_FilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(context.Background()))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	dsn, err := buildDSN(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = buildDSN(filepath.Join(dir, "h.db"))
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "h.db")+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = buildDSN("file:" + filepath.Join(dir, "h.db") + "?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "h.db")+"?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn)
}
