package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
)

// StationTransformer implements Transformer: it parses station readings,
// computes their thermal-stress indices, and optionally attaches place names.
type StationTransformer struct {
	engine   *thermal.Engine
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a StationTransformer. Pass a nil geocoder to disable
// place enrichment.
func NewTransformer(engine *thermal.Engine, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *StationTransformer {
	return &StationTransformer{
		engine:   engine,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *StationTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.StationEvent, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.StationEvent{}, err
	}

	event = domain.EnrichStationEvent(event, t.engine)
	if event.IndexError != "" {
		t.logger.Debug("indices unavailable",
			"event_id", event.ID,
			"station_id", event.StationID,
			"reason", event.IndexError,
		)
	}
	t.metrics.ObserveIndices("pipeline", event.Indices)

	event = domain.EnrichWithGeocoding(ctx, event, t.geocoder, t.logger)

	return event, nil
}
