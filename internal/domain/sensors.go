package domain

import (
	"sort"
	"strings"

	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
)

// Sensor column names differ between station models. Each quantity lists the
// column patterns to try, in priority order.
var (
	airTemperaturePatterns   = []string{"Air temperature (avg)", "HC Air temperature (avg)"}
	relativeHumidityPatterns = []string{"Relative humidity (avg)", "HC Relative humidity (avg)"}
	windSpeedPatterns        = []string{"Wind speed (avg)", "U-sonic wind speed (avg)"}
	solarRadiationPatterns   = []string{"Solar radiation (avg)"}

	precipitationPatterns = []string{"Precipitation (sum)"}
	windSpeedMaxPatterns  = []string{"Wind speed (max)", "U-sonic wind speed (max)"}
	windGustPatterns      = []string{"Wind gust (max)"}
)

// ObservationFromSensors builds an observation from vendor sensor columns.
// Quantities with no matching, non-null column are left absent.
func ObservationFromSensors(sensors map[string]*float64) thermal.Observation {
	if len(sensors) == 0 {
		return thermal.Observation{}
	}
	columns := sortedColumns(sensors)
	return thermal.Observation{
		AirTemperatureC:     matchSensor(sensors, columns, airTemperaturePatterns),
		RelativeHumidityPct: matchSensor(sensors, columns, relativeHumidityPatterns),
		WindSpeedMS:         matchSensor(sensors, columns, windSpeedPatterns),
		SolarRadiationWM2:   matchSensor(sensors, columns, solarRadiationPatterns),
	}
}

// ConditionsFromSensors picks the precipitation and wind extreme readings
// out of vendor sensor columns, with the same matching rules as
// ObservationFromSensors.
func ConditionsFromSensors(sensors map[string]*float64) Conditions {
	if len(sensors) == 0 {
		return Conditions{}
	}
	columns := sortedColumns(sensors)
	return Conditions{
		PrecipitationMM: matchSensor(sensors, columns, precipitationPatterns),
		WindSpeedMaxMS:  matchSensor(sensors, columns, windSpeedMaxPatterns),
		WindGustMS:      matchSensor(sensors, columns, windGustPatterns),
	}
}

func sortedColumns(sensors map[string]*float64) []string {
	columns := make([]string, 0, len(sensors))
	for k := range sensors {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// matchSensor returns a copy of the value of the best non-null column for
// the first pattern that matches any. A column matches a pattern when it
// contains it case-insensitively; among matches the shortest name wins, so
// an exact name beats a prefixed variant such as "HC ...". Equal lengths
// fall back to sorted order.
func matchSensor(sensors map[string]*float64, columns, patterns []string) *float64 {
	for _, p := range patterns {
		p = strings.ToLower(p)
		best := ""
		for _, c := range columns {
			if sensors[c] == nil || !strings.Contains(strings.ToLower(c), p) {
				continue
			}
			if best == "" || len(c) < len(best) {
				best = c
			}
		}
		if best != "" {
			out := *sensors[best]
			return &out
		}
	}
	return nil
}
