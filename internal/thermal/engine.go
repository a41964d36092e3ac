package thermal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/couchcryptid/heat-stress-etl/internal/comfort"
	"golang.org/x/sync/errgroup"
)

const (
	// WindFloor is the minimum 2 m wind speed fed to the models, in m/s.
	WindFloor = 0.4

	// windShearExponent is the power-law exponent for open terrain.
	windShearExponent = 0.14

	// stefanBoltzmann is σ in W/(m²·K⁴).
	stefanBoltzmann = 5.67e-8

	solarAbsorptivity = 0.7
	projectedArea     = 0.5
	kelvinOffset      = 273.15
)

// ErrIncomplete means a required reading was missing or not a finite number.
var ErrIncomplete = errors.New("incomplete observation")

// Observation is one reading from one station. Nil fields are absent.
type Observation struct {
	AirTemperatureC     *float64 `json:"air_temperature_c"`
	RelativeHumidityPct *float64 `json:"relative_humidity_pct"`
	WindSpeedMS         *float64 `json:"wind_speed_ms"`
	SolarRadiationWM2   *float64 `json:"solar_radiation_wm2"`
}

// IndexResult holds the computed indices. A nil index always pairs with an
// unavailable category.
type IndexResult struct {
	UTCI            *float64 `json:"utci"`
	HeatIndex       *float64 `json:"heat_index"`
	UTCIStress      Stress   `json:"utci_stress"`
	HeatIndexStress Stress   `json:"heat_index_stress"`
}

// Available reports whether the indices were computed.
func (r IndexResult) Available() bool {
	return r.UTCI != nil && r.HeatIndex != nil
}

// Model computes the raw indices. Relative humidity is a fraction.
type Model interface {
	UTCI(tdb, tr, v, rh float64) (float64, error)
	HeatIndex(tdb, rh float64) (float64, error)
}

// Engine computes thermal-stress indices. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	model Model
}

// NewEngine returns an Engine backed by m. A nil model selects the
// regression models in package comfort.
func NewEngine(m Model) *Engine {
	if m == nil {
		m = comfort.Model{}
	}
	return &Engine{model: m}
}

var defaultEngine = NewEngine(nil)

// ComputeIndices runs obs through the default engine.
func ComputeIndices(obs Observation) IndexResult {
	return defaultEngine.Compute(obs)
}

// Compute returns the indices for obs, or the all-unavailable result when
// they cannot be computed.
func (e *Engine) Compute(obs Observation) IndexResult {
	res, _ := e.Evaluate(obs)
	return res
}

// Evaluate is Compute with the reason for an unavailable result. The
// returned IndexResult is all-unavailable whenever err is non-nil.
func (e *Engine) Evaluate(obs Observation) (res IndexResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = IndexResult{}
			err = fmt.Errorf("thermal model panic: %v", r)
		}
	}()

	tdb, ok := finite(obs.AirTemperatureC)
	if !ok {
		return IndexResult{}, fmt.Errorf("%w: air temperature", ErrIncomplete)
	}
	rhPct, ok := finite(obs.RelativeHumidityPct)
	if !ok {
		return IndexResult{}, fmt.Errorf("%w: relative humidity", ErrIncomplete)
	}
	v2, ok := finite(obs.WindSpeedMS)
	if !ok {
		return IndexResult{}, fmt.Errorf("%w: wind speed", ErrIncomplete)
	}
	solar, ok := finite(obs.SolarRadiationWM2)
	if !ok {
		solar = 0
	}

	v2 = math.Max(v2, WindFloor)
	rh := rhPct / 100
	v10 := adjustWindHeight(v2)
	tr := meanRadiantTemperature(tdb, solar)

	utci, err := e.model.UTCI(tdb, tr, v10, rh)
	if err != nil {
		return IndexResult{}, fmt.Errorf("utci: %w", err)
	}
	hi, err := e.model.HeatIndex(tdb, rh)
	if err != nil {
		return IndexResult{}, fmt.Errorf("heat index: %w", err)
	}
	if !isFinite(utci) || !isFinite(hi) {
		return IndexResult{}, fmt.Errorf("non-finite model output: utci=%v heat_index=%v", utci, hi)
	}

	return IndexResult{
		UTCI:            &utci,
		HeatIndex:       &hi,
		UTCIStress:      CategorizeUTCI(utci),
		HeatIndexStress: CategorizeHeatIndex(hi),
	}, nil
}

// ComputeAll computes indices for every observation using at most workers
// goroutines, preserving input order. A workers value below one uses
// GOMAXPROCS. The only error returned is the context's.
func (e *Engine) ComputeAll(ctx context.Context, obs []Observation, workers int) ([]IndexResult, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]IndexResult, len(obs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range obs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Compute(obs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// adjustWindHeight extrapolates a 2 m wind speed to 10 m.
func adjustWindHeight(v2 float64) float64 {
	return v2 * math.Pow(10.0/2.0, windShearExponent)
}

// meanRadiantTemperature estimates the mean radiant temperature in °C from
// air temperature (°C) and global solar radiation (W/m²).
func meanRadiantTemperature(tdb, solar float64) float64 {
	tk := tdb + kelvinOffset
	trK := math.Pow(math.Pow(tk, 4)+solar*solarAbsorptivity*projectedArea/stefanBoltzmann, 0.25)
	return trK - kelvinOffset
}

func finite(p *float64) (float64, bool) {
	if p == nil || !isFinite(*p) {
		return 0, false
	}
	return *p, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
