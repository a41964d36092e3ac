package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
)

const dateTimeColumn = "Date/Time"

// timestampLayouts are the Date/Time formats seen in station exports.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02T15:04:05Z07:00",
}

type station struct {
	id   string
	name string
	lat  float64
	lon  float64
}

// readHistoricCSV converts a station export into raw station records. Every
// column except Date/Time is treated as a sensor column; blank or
// non-numeric cells are absent readings. Rows with an unparseable Date/Time
// are skipped and counted.
func readHistoricCSV(r io.Reader, st station) ([]domain.RawStationRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("empty csv")
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	timeIdx := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if header[i] == dateTimeColumn {
			timeIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, 0, fmt.Errorf("missing %q column", dateTimeColumn)
	}

	var records []domain.RawStationRecord
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read row: %w", err)
		}
		if timeIdx >= len(row) {
			skipped++
			continue
		}

		ts, ok := normalizeTimestamp(row[timeIdx])
		if !ok {
			skipped++
			continue
		}

		sensors := make(map[string]*float64, len(header)-1)
		for i, col := range header {
			if i == timeIdx || col == "" {
				continue
			}
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			sensors[col] = parseReading(cell)
		}

		records = append(records, domain.RawStationRecord{
			StationID:   st.id,
			StationName: st.name,
			Timestamp:   ts,
			Lat:         st.lat,
			Lon:         st.lon,
			Sensors:     sensors,
		})
	}
	return records, skipped, nil
}

// normalizeTimestamp parses an export timestamp and re-formats it in a
// layout the station record parser accepts.
func normalizeTimestamp(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

func parseReading(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
