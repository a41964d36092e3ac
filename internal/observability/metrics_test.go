package observability

import (
	"testing"

	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveIndices(t *testing.T) {
	m := NewMetricsForTesting()
	utci, hi := 42.0, 37.2

	m.ObserveIndices("pipeline", thermal.IndexResult{
		UTCI:            &utci,
		HeatIndex:       &hi,
		UTCIStress:      thermal.VeryStrongHeatStress,
		HeatIndexStress: thermal.ExtremeCaution,
	})
	m.ObserveIndices("pipeline", thermal.IndexResult{})
	m.ObserveIndices("api", thermal.IndexResult{})

	assert.InDelta(t, 1, testutil.ToFloat64(m.IndexOutcomes.WithLabelValues("pipeline", "computed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IndexOutcomes.WithLabelValues("pipeline", "unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IndexOutcomes.WithLabelValues("api", "unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StressCategories.WithLabelValues("utci", "Very strong heat stress")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StressCategories.WithLabelValues("heat_index", "Extreme Caution")), 0)
}
