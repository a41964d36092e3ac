package thermal

import (
	"encoding/json"
	"math"
)

// Stress is a thermal-stress category label. The zero value means the
// category is unavailable.
type Stress string

// StressUnavailable marks a category that could not be determined.
const StressUnavailable Stress = ""

// UTCI stress categories.
const (
	NoHeatStress         Stress = "No heat stress"
	ModerateHeatStress   Stress = "Moderate heat stress"
	StrongHeatStress     Stress = "Strong heat stress"
	VeryStrongHeatStress Stress = "Very strong heat stress"
	ExtremeHeatStress    Stress = "Extreme heat stress"
)

// Heat Index stress categories. Values below the first threshold share
// NoHeatStress with the UTCI scale.
const (
	Caution        Stress = "Caution"
	ExtremeCaution Stress = "Extreme Caution"
	Danger         Stress = "Danger"
	ExtremeDanger  Stress = "Extreme Danger"
)

// Available reports whether s holds a real category.
func (s Stress) Available() bool {
	return s != StressUnavailable
}

func (s Stress) String() string {
	if !s.Available() {
		return "unavailable"
	}
	return string(s)
}

// MarshalJSON encodes an unavailable category as null.
func (s Stress) MarshalJSON() ([]byte, error) {
	if !s.Available() {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON decodes null as an unavailable category.
func (s *Stress) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StressUnavailable
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Stress(v)
	return nil
}

// CategorizeUTCI maps a UTCI value in °C to its heat-stress category.
// Intervals are closed below and open above. NaN is unavailable.
func CategorizeUTCI(v float64) Stress {
	switch {
	case math.IsNaN(v):
		return StressUnavailable
	case v < 26:
		return NoHeatStress
	case v < 32:
		return ModerateHeatStress
	case v < 38:
		return StrongHeatStress
	case v < 46:
		return VeryStrongHeatStress
	default:
		return ExtremeHeatStress
	}
}

// CategorizeHeatIndex maps a Heat Index value in °C to its category.
// Intervals are closed below and open above. NaN is unavailable.
func CategorizeHeatIndex(v float64) Stress {
	switch {
	case math.IsNaN(v):
		return StressUnavailable
	case v < 26.7:
		return NoHeatStress
	case v < 32.2:
		return Caution
	case v < 39.4:
		return ExtremeCaution
	case v < 51.1:
		return Danger
	default:
		return ExtremeDanger
	}
}
