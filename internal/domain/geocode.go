package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding attaches the station's place name and address. If
// geocoder is nil the event is returned unchanged; if the lookup fails the
// event is still returned with GeoSource "failed".
func EnrichWithGeocoding(ctx context.Context, event StationEvent, geocoder Geocoder, logger *slog.Logger) StationEvent {
	if geocoder == nil {
		return event
	}

	if event.Geo.Lat == 0 && event.Geo.Lon == 0 {
		event.GeoSource = "original"
		return event
	}

	result, err := geocoder.ReverseGeocode(ctx, event.Geo.Lat, event.Geo.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"station_id", event.StationID,
			"lat", event.Geo.Lat,
			"lon", event.Geo.Lon,
			"error", err,
		)
		event.GeoSource = "failed"
		return event
	}
	if result.FormattedAddress == "" {
		event.GeoSource = "original"
		return event
	}

	event.FormattedAddress = result.FormattedAddress
	event.PlaceName = result.PlaceName
	event.GeoConfidence = result.Confidence
	event.GeoSource = "reverse"
	return event
}
