package comfort

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCI_ReferenceValues(t *testing.T) {
	tests := []struct {
		name     string
		tdb, tr  float64
		v, rh    float64
		expected float64
	}{
		{name: "neutral", tdb: 25, tr: 25, v: 1, rh: 0.5, expected: 24.6},
		{name: "warm radiant", tdb: 25, tr: 27, v: 1, rh: 0.5, expected: 25.2},
		{name: "radiant gain", tdb: 19, tr: 24, v: 1, rh: 0.5, expected: 20.0},
		{name: "radiant loss", tdb: 19, tr: 14, v: 1, rh: 0.5, expected: 16.8},
		{name: "light breeze", tdb: 27, tr: 22, v: 1, rh: 0.5, expected: 25.4},
		{name: "strong breeze", tdb: 27, tr: 22, v: 10, rh: 0.5, expected: 20.0},
		{name: "gale", tdb: 27, tr: 22, v: 16, rh: 0.5, expected: 15.8},
		{name: "cold wind", tdb: -20, tr: -20, v: 5, rh: 0.5, expected: -38.2},
		{name: "hot sun", tdb: 35, tr: 70.55227897200302, v: 3.7581754854765315, rh: 0.4, expected: 42.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UTCI(tt.tdb, tt.tr, tt.v, tt.rh)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestUTCI_OutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		tdb, tr float64
		v, rh   float64
		input   string
	}{
		{name: "too hot", tdb: 51, tr: 51, v: 1, rh: 0.5, input: "tdb"},
		{name: "too cold", tdb: -51, tr: -51, v: 1, rh: 0.5, input: "tdb"},
		{name: "radiant excess", tdb: 20, tr: 91, v: 1, rh: 0.5, input: "tr-tdb"},
		{name: "radiant deficit", tdb: 20, tr: -11, v: 1, rh: 0.5, input: "tr-tdb"},
		{name: "calm", tdb: 20, tr: 20, v: 0.4, rh: 0.5, input: "v"},
		{name: "storm", tdb: 20, tr: 20, v: 17.5, rh: 0.5, input: "v"},
		{name: "humidity in percent", tdb: 20, tr: 20, v: 1, rh: 50, input: "rh"},
		{name: "nan temperature", tdb: math.NaN(), tr: 20, v: 1, rh: 0.5, input: "tdb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UTCI(tt.tdb, tt.tr, tt.v, tt.rh)
			require.Error(t, err)
			assert.True(t, math.IsNaN(got))

			var rangeErr *RangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, "utci", rangeErr.Model)
			assert.Equal(t, tt.input, rangeErr.Input)
		})
	}
}

func TestUTCI_RangeBoundsInclusive(t *testing.T) {
	_, err := UTCI(UTCIMaxAirTemp, UTCIMaxAirTemp, UTCIMinWindSpeed, 0)
	require.NoError(t, err)
	_, err = UTCI(UTCIMinAirTemp, UTCIMinAirTemp, UTCIMaxWindSpeed, 1)
	require.NoError(t, err)
}

func TestHeatIndex_ReferenceValues(t *testing.T) {
	tests := []struct {
		tdb, rh  float64
		expected float64
	}{
		{tdb: 25, rh: 0.5, expected: 25.9},
		{tdb: 35, rh: 0.4, expected: 37.2},
		{tdb: 30, rh: 0.7, expected: 35.0},
		{tdb: 40, rh: 0.6, expected: 62.6},
		{tdb: 20, rh: 0, expected: 18.5},
	}

	for _, tt := range tests {
		got, err := HeatIndex(tt.tdb, tt.rh)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, got, 1e-9, "tdb=%v rh=%v", tt.tdb, tt.rh)
	}
}

func TestHeatIndex_InvalidInput(t *testing.T) {
	_, err := HeatIndex(30, 1.2)
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "rh", rangeErr.Input)

	_, err = HeatIndex(math.Inf(1), 0.5)
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "tdb", rangeErr.Input)
}

func TestSaturationVapourPressure(t *testing.T) {
	assert.InDelta(t, 6.112, SaturationVapourPressure(0), 0.001)
	assert.InDelta(t, 31.699, SaturationVapourPressure(25), 0.001)
	assert.InDelta(t, 56.292, SaturationVapourPressure(35), 0.001)
}

func TestModel_DelegatesToPackageFunctions(t *testing.T) {
	var m Model
	got, err := m.UTCI(25, 25, 1, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 24.6, got, 1e-9)

	hi, err := m.HeatIndex(25, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 25.9, hi, 1e-9)
}

func TestRangeError_Message(t *testing.T) {
	err := &RangeError{Model: "utci", Input: "v", Value: 20, Min: 0.5, Max: 17}
	assert.Equal(t, "utci: v 20 outside valid range [0.5, 17]", err.Error())
}
