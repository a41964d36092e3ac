package comfort

import "math"

// UTCI validity domain of the regression polynomial.
const (
	UTCIMinAirTemp   = -50.0
	UTCIMaxAirTemp   = 50.0
	UTCIMinDeltaMRT  = -30.0
	UTCIMaxDeltaMRT  = 70.0
	UTCIMinWindSpeed = 0.5
	UTCIMaxWindSpeed = 17.0
)

// hylandWexler are the coefficients of the saturation vapour pressure fit
// over liquid water, for powers -2 through 4 of absolute temperature.
var hylandWexler = [...]float64{
	-2.8365744e3,
	-6.028076559e3,
	1.954263612e1,
	-2.737830188e-2,
	1.6261698e-5,
	7.0229056e-10,
	-1.8680009e-13,
}

// SaturationVapourPressure returns the saturation vapour pressure of water
// in hPa at air temperature tdb (°C).
func SaturationVapourPressure(tdb float64) float64 {
	tk := tdb + 273.15
	exponent := 2.7150305 * math.Log(tk)
	for i, g := range hylandWexler {
		exponent += g * math.Pow(tk, float64(i-2))
	}
	return math.Exp(exponent) * 0.01
}

// UTCI returns the Universal Thermal Climate Index in °C.
//
// tdb is air temperature (°C), tr mean radiant temperature (°C), v wind speed
// at 10 m (m/s) and rh relative humidity as a fraction. Inputs outside the
// regression's validity domain yield a *RangeError.
func UTCI(tdb, tr, v, rh float64) (float64, error) {
	dtr := tr - tdb
	if err := checkRange("utci", "tdb", tdb, UTCIMinAirTemp, UTCIMaxAirTemp); err != nil {
		return math.NaN(), err
	}
	if err := checkRange("utci", "tr-tdb", dtr, UTCIMinDeltaMRT, UTCIMaxDeltaMRT); err != nil {
		return math.NaN(), err
	}
	if err := checkRange("utci", "v", v, UTCIMinWindSpeed, UTCIMaxWindSpeed); err != nil {
		return math.NaN(), err
	}
	if err := checkRange("utci", "rh", rh, 0, 1); err != nil {
		return math.NaN(), err
	}

	// Water vapour pressure in kPa.
	pa := SaturationVapourPressure(tdb) * rh / 10

	var (
		taPow  [7]float64
		vaPow  [7]float64
		dtrPow [7]float64
		paPow  [7]float64
	)
	taPow[0], vaPow[0], dtrPow[0], paPow[0] = 1, 1, 1, 1
	for i := 1; i < 7; i++ {
		taPow[i] = taPow[i-1] * tdb
		vaPow[i] = vaPow[i-1] * v
		dtrPow[i] = dtrPow[i-1] * dtr
		paPow[i] = paPow[i-1] * pa
	}

	offset := 0.0
	for _, t := range utciTerms {
		offset += t.c * taPow[t.ta] * vaPow[t.va] * dtrPow[t.dtr] * paPow[t.pa]
	}

	return round1(tdb + offset), nil
}
