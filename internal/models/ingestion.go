package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRainfallRow represents a single row read from the source spreadsheet.
// Used during ingestion process
type RawRainfallRow struct {
	Row   int    // 1-based spreadsheet row number
	Time  string // timestamp cell as text
	Value string // RG_A cell as text
}

// ToRecord converts the row into a RainfallRecord.
// Timestamps are rounded to the nearest second; NaN and infinite values are rejected
// because the table column is NOT NULL. Negative values are kept as read.
func (r *RawRainfallRow) ToRecord() (*RainfallRecord, error) {
	if strings.TrimSpace(r.Time) == "" {
		return nil, &ValidationError{
			Field:   "time",
			Value:   r.Time,
			Message: "missing timestamp",
		}
	}

	ts, err := ParseTimestamp(r.Time)
	if err != nil {
		return nil, &ValidationError{
			Field:   "time",
			Value:   r.Time,
			Message: "invalid timestamp, expected ISO-8601 date or datetime",
		}
	}

	raw := strings.TrimSpace(r.Value)
	if raw == "" {
		return nil, &ValidationError{
			Field:   "RG_A",
			Value:   r.Value,
			Message: "missing rainfall value",
		}
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &ValidationError{
			Field:   "RG_A",
			Value:   r.Value,
			Message: "invalid rainfall value, expected a finite decimal number",
		}
	}

	return &RainfallRecord{
		Time:  ts.Round(time.Second),
		Value: value,
	}, nil
}
