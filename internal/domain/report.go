package domain

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
)

// MonthLayout formats the month key of a MonthlySummary.
const MonthLayout = "2006-01"

// FloodWarningThresholdMM is the cumulative rainfall over
// RainfallWindowDays that raises a flood warning.
const FloodWarningThresholdMM = 50.0

// RainfallWindowDays is the length of the rolling cumulative rainfall window.
const RainfallWindowDays = 5

const msToKMH = 3.6

// MonthlySummary aggregates one station's readings over one calendar month
// (UTC). Temperature day counts use the daily maximum for the "above"
// thresholds and the daily minimum for the "below" thresholds.
type MonthlySummary struct {
	StationID   string `json:"station_id"`
	StationName string `json:"station_name,omitempty"`
	Month       string `json:"month"`
	Readings    int    `json:"readings"`

	AvgTemperatureC *float64 `json:"avg_temperature_c"`
	MaxTemperatureC *float64 `json:"max_temperature_c"`
	MinTemperatureC *float64 `json:"min_temperature_c"`

	DaysAbove30C int `json:"days_above_30c"`
	DaysAbove35C int `json:"days_above_35c"`
	DaysAbove40C int `json:"days_above_40c"`
	DaysBelow10C int `json:"days_below_10c"`
	DaysBelow5C  int `json:"days_below_5c"`
	DaysBelow0C  int `json:"days_below_0c"`

	MaxUTCI      *float64 `json:"max_utci"`
	MaxHeatIndex *float64 `json:"max_heat_index"`

	// Hours per stress category, using the highest index value in each hour.
	UTCIStressHours      map[string]int `json:"utci_stress_hours"`
	HeatIndexStressHours map[string]int `json:"heat_index_stress_hours"`

	// Rainfall totals. The rolling window covers calendar days, so days
	// without readings count as dry.
	PrecipitationTotalMM   *float64 `json:"precipitation_total_mm"`
	MaxPrecipitation5DayMM *float64 `json:"max_precipitation_5day_mm"`
	FloodWarning           bool     `json:"flood_warning"`

	// Wind statistics in km/h, rounded to 0.1.
	AvgWindSpeedKMH    *float64 `json:"avg_wind_speed_kmh"`
	MaxWindSpeedKMH    *float64 `json:"max_wind_speed_kmh"`
	AvgWindSpeedMaxKMH *float64 `json:"avg_wind_speed_max_kmh"`
	MaxWindSpeedMaxKMH *float64 `json:"max_wind_speed_max_kmh"`
	AvgWindGustKMH     *float64 `json:"avg_wind_gust_kmh"`
	MaxWindGustKMH     *float64 `json:"max_wind_gust_kmh"`
}

type summaryKey struct {
	stationID string
	month     string
}

type dayRange struct {
	max, min float64
}

// windStat is a running mean and maximum of one wind reading in m/s.
type windStat struct {
	sum float64
	n   int
	max float64
}

func (w *windStat) add(p *float64) {
	v, ok := finite(p)
	if !ok {
		return
	}
	if w.n == 0 || v > w.max {
		w.max = v
	}
	w.sum += v
	w.n++
}

// kmh returns the mean and maximum converted to km/h, or nils when the
// reading never appeared.
func (w *windStat) kmh() (avg, maxV *float64) {
	if w.n == 0 {
		return nil, nil
	}
	a := round1(w.sum / float64(w.n) * msToKMH)
	m := round1(w.max * msToKMH)
	return &a, &m
}

// monthAccumulator collects the running aggregates for one summary.
type monthAccumulator struct {
	summary  MonthlySummary
	tempSum  float64
	tempN    int
	days     map[string]*dayRange
	hourUTCI map[string]float64
	hourHI   map[string]float64

	rainDays map[string]float64
	wind     windStat
	windMax  windStat
	gust     windStat
}

// SummarizeMonths groups events by station and UTC month and aggregates
// each group. Results are ordered by station ID, then month.
func SummarizeMonths(events []StationEvent) []MonthlySummary {
	groups := make(map[summaryKey]*monthAccumulator)
	for i := range events {
		e := &events[i]
		key := summaryKey{stationID: e.StationID, month: e.ObservedAt.UTC().Format(MonthLayout)}
		acc, ok := groups[key]
		if !ok {
			acc = &monthAccumulator{
				summary: MonthlySummary{
					StationID: e.StationID,
					Month:     key.month,
				},
				days:     make(map[string]*dayRange),
				hourUTCI: make(map[string]float64),
				hourHI:   make(map[string]float64),
				rainDays: make(map[string]float64),
			}
			groups[key] = acc
		}
		acc.add(e)
	}

	keys := make([]summaryKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].stationID != keys[j].stationID {
			return keys[i].stationID < keys[j].stationID
		}
		return keys[i].month < keys[j].month
	})

	out := make([]MonthlySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k].finish())
	}
	return out
}

func (a *monthAccumulator) add(e *StationEvent) {
	a.summary.Readings++
	if a.summary.StationName == "" {
		a.summary.StationName = e.StationName
	}

	day := e.ObservedAt.UTC().Format(time.DateOnly)
	if v, ok := finite(e.Readings.AirTemperatureC); ok {
		a.tempSum += v
		a.tempN++
		a.summary.MaxTemperatureC = maxPtr(a.summary.MaxTemperatureC, v)
		a.summary.MinTemperatureC = minPtr(a.summary.MinTemperatureC, v)

		if r, ok := a.days[day]; ok {
			r.max = math.Max(r.max, v)
			r.min = math.Min(r.min, v)
		} else {
			a.days[day] = &dayRange{max: v, min: v}
		}
	}

	if v, ok := finite(e.Conditions.PrecipitationMM); ok && v >= 0 {
		a.rainDays[day] += v
	}
	a.wind.add(e.Readings.WindSpeedMS)
	a.windMax.add(e.Conditions.WindSpeedMaxMS)
	a.gust.add(e.Conditions.WindGustMS)

	hour := e.ObservedAt.UTC().Truncate(time.Hour).Format(time.RFC3339)
	if u := e.Indices.UTCI; u != nil {
		a.summary.MaxUTCI = maxPtr(a.summary.MaxUTCI, *u)
		if prev, ok := a.hourUTCI[hour]; !ok || *u > prev {
			a.hourUTCI[hour] = *u
		}
	}
	if hi := e.Indices.HeatIndex; hi != nil {
		a.summary.MaxHeatIndex = maxPtr(a.summary.MaxHeatIndex, *hi)
		if prev, ok := a.hourHI[hour]; !ok || *hi > prev {
			a.hourHI[hour] = *hi
		}
	}
}

func (a *monthAccumulator) finish() MonthlySummary {
	s := a.summary
	if a.tempN > 0 {
		avg := a.tempSum / float64(a.tempN)
		s.AvgTemperatureC = &avg
	}

	for _, r := range a.days {
		if r.max > 30 {
			s.DaysAbove30C++
		}
		if r.max > 35 {
			s.DaysAbove35C++
		}
		if r.max > 40 {
			s.DaysAbove40C++
		}
		if r.min < 10 {
			s.DaysBelow10C++
		}
		if r.min < 5 {
			s.DaysBelow5C++
		}
		if r.min < 0 {
			s.DaysBelow0C++
		}
	}

	s.UTCIStressHours = countCategories(a.hourUTCI, thermal.CategorizeUTCI)
	s.HeatIndexStressHours = countCategories(a.hourHI, thermal.CategorizeHeatIndex)

	a.finishRainfall(&s)
	s.AvgWindSpeedKMH, s.MaxWindSpeedKMH = a.wind.kmh()
	s.AvgWindSpeedMaxKMH, s.MaxWindSpeedMaxKMH = a.windMax.kmh()
	s.AvgWindGustKMH, s.MaxWindGustKMH = a.gust.kmh()
	return s
}

// finishRainfall totals the month and finds the wettest run of
// RainfallWindowDays consecutive days. Only windows ending on a day with
// readings are checked; any other window is covered by the one ending on
// the last rainfall day before it.
func (a *monthAccumulator) finishRainfall(s *MonthlySummary) {
	if len(a.rainDays) == 0 {
		return
	}

	var total, best float64
	for day, mm := range a.rainDays {
		total += mm
		end, err := time.Parse(time.DateOnly, day)
		if err != nil {
			continue
		}
		var window float64
		for i := 0; i < RainfallWindowDays; i++ {
			window += a.rainDays[end.AddDate(0, 0, -i).Format(time.DateOnly)]
		}
		if window > best {
			best = window
		}
	}

	total = round1(total)
	best = round1(best)
	s.PrecipitationTotalMM = &total
	s.MaxPrecipitation5DayMM = &best
	s.FloodWarning = best >= FloodWarningThresholdMM
}

func countCategories(hours map[string]float64, categorize func(float64) thermal.Stress) map[string]int {
	counts := make(map[string]int)
	for _, v := range hours {
		if c := categorize(v); c.Available() {
			counts[string(c)]++
		}
	}
	return counts
}

func finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func maxPtr(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return &v
	}
	return cur
}

func minPtr(cur *float64, v float64) *float64 {
	if cur == nil || v < *cur {
		return &v
	}
	return cur
}
