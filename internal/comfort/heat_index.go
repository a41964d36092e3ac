package comfort

import "math"

// HeatIndex returns the Heat Index in °C using the Rothfusz regression
// expressed in SI units.
//
// tdb is air temperature (°C) and rh relative humidity as a fraction. The
// regression itself works in percent.
func HeatIndex(tdb, rh float64) (float64, error) {
	if math.IsNaN(tdb) || math.IsInf(tdb, 0) {
		return math.NaN(), &RangeError{Model: "heat_index", Input: "tdb", Value: tdb, Min: math.Inf(-1), Max: math.Inf(1)}
	}
	if err := checkRange("heat_index", "rh", rh, 0, 1); err != nil {
		return math.NaN(), err
	}

	t := tdb
	h := rh * 100

	hi := -8.784695 +
		1.61139411*t +
		2.338549*h -
		0.14611605*t*h -
		0.012308094*t*t -
		0.016424828*h*h +
		0.002211732*t*t*h +
		0.00072546*t*h*h -
		0.000003582*t*t*h*h

	return round1(hi), nil
}
