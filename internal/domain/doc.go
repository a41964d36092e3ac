// Package domain models weather-station readings and the thermal-stress
// records derived from them.
//
// # Data Source
//
// Stations report through a vendor portal. The upstream collector polls it,
// and publishes one JSON document per station reading to the Kafka source
// topic (or the MQTT telemetry topic for directly connected stations). See
// [RawStationRecord] for the wire format.
//
// # Sensor Columns
//
// Vendor exports name sensors differently depending on the station model:
//
//	Air temperature:   "Air temperature (avg)", "HC Air temperature (avg)"
//	Relative humidity: "Relative humidity (avg)", "HC Relative humidity (avg)"
//	Wind speed:        "Wind speed (avg)", "U-sonic wind speed (avg)"
//	Solar radiation:   "Solar radiation (avg)"
//
// Patterns are matched as case-insensitive substrings, in the order listed.
// Flat reading fields on the record take precedence over sensor columns.
// Units are °C, percent, m/s at 2 m, and W/m².
//
// # Timestamps
//
// Record timestamps are RFC 3339 or "YYYY-MM-DD hh:mm[:ss]" in UTC. When a
// record carries no usable timestamp, the message timestamp is used.
//
// # Indices
//
// Enrichment runs the reading through the thermal engine (package thermal)
// to obtain UTCI and Heat Index with their stress categories. A reading
// missing temperature, humidity or wind is still emitted, with null indices
// and IndexError explaining why.
//
// # Monthly Reports
//
// [SummarizeMonths] aggregates a station's month: average, maximum and
// minimum temperature, the number of days whose maximum exceeds 30, 35 and
// 40 °C or whose minimum falls below 10, 5 and 0 °C, peak indices, and hours
// spent in each stress category.
//
// # ID Generation
//
// Event IDs are "<station_id>-<hash>" where the hash covers station and
// observation time. This enables idempotent inserts downstream
// (ON CONFLICT DO NOTHING) and replay safety. See [generateID].
package domain
