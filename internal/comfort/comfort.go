// Package comfort implements the thermal-comfort regression models used to
// derive outdoor heat-stress indices: the Universal Thermal Climate Index
// (UTCI) and the Heat Index (HI).
//
// Relative humidity is passed as a fraction (0–1) to every function in this
// package. Results are rounded to one decimal place, the resolution at which
// both regressions are published.
package comfort

import (
	"fmt"
	"math"
)

// RangeError reports an input that falls outside the validity domain of a
// regression model.
type RangeError struct {
	Model string
	Input string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s %g outside valid range [%g, %g]", e.Model, e.Input, e.Value, e.Min, e.Max)
}

// Model exposes the package functions as a value, for callers that take the
// models as an injected dependency.
type Model struct{}

// UTCI delegates to the package-level UTCI.
func (Model) UTCI(tdb, tr, v, rh float64) (float64, error) {
	return UTCI(tdb, tr, v, rh)
}

// HeatIndex delegates to the package-level HeatIndex.
func (Model) HeatIndex(tdb, rh float64) (float64, error) {
	return HeatIndex(tdb, rh)
}

// checkRange returns a *RangeError when v is non-finite or outside [lo, hi].
func checkRange(model, input string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &RangeError{Model: model, Input: input, Value: v, Min: lo, Max: hi}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
