// Package thermal computes outdoor thermal-stress indices for a single
// weather-station reading and maps each index onto a stress category.
//
// # Pipeline
//
// A reading passes through a fixed sequence of steps:
//
//  1. Completeness gate. Air temperature, relative humidity and wind speed
//     are required; a missing or non-finite value makes every output
//     unavailable. Missing solar radiation counts as zero.
//  2. Wind floor. Wind speed is raised to at least [WindFloor] m/s.
//  3. Wind height. The 2 m anemometer reading is extrapolated to the 10 m
//     reference height with the power law v10 = v2 · (10/2)^0.14.
//  4. Mean radiant temperature. Estimated from air temperature and global
//     solar radiation assuming 70% absorptivity and a 0.5 projected-area
//     factor:
//
//     tr = (tdb_k⁴ + S · 0.7 · 0.5 / σ)^¼ − 273.15
//
//  5. Models. UTCI takes (tdb, tr, v10, rh); Heat Index takes (tdb, rh),
//     with rh as a fraction.
//  6. Categorization on half-open intervals (see [CategorizeUTCI] and
//     [CategorizeHeatIndex]).
//
// Any model error, non-finite model output or panic yields the
// all-unavailable result. [Engine.Compute] never fails and never mutates its
// input.
//
// # Categories
//
//	UTCI (°C):  <26 no heat stress | <32 moderate | <38 strong | <46 very strong | ≥46 extreme
//	HI (°C):    <26.7 no heat stress | <32.2 caution | <39.4 extreme caution | <51.1 danger | ≥51.1 extreme danger
package thermal
