package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the wire format of record timestamps (second precision)
const TimestampLayout = "2006-01-02T15:04:05"

// timestampLayouts are accepted when parsing timestamps from requests and spreadsheets
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date or datetime. Values without a zone are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// RainfallRecord is one timestamped rain gauge measurement in millimeters
type RainfallRecord struct {
	ID    int64     `json:"id" db:"id"`
	Time  time.Time `json:"time" db:"time"`
	Value float64   `json:"RG_A" db:"RG_A"`
}

// MarshalJSON renders the timestamp with second precision. Non-finite values
// are written as null since JSON has no representation for them.
func (r RainfallRecord) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID    int64    `json:"id"`
		Time  string   `json:"time"`
		Value *float64 `json:"RG_A"`
	}
	out := wire{
		ID:   r.ID,
		Time: r.Time.UTC().Format(TimestampLayout),
	}
	if !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) {
		v := r.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// HasWellDefinedValue reports whether the value takes part in statistics.
// NaN, infinities and negative readings are kept in results but excluded from aggregates.
func (r RainfallRecord) HasWellDefinedValue() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) && r.Value >= 0
}

// DateRange is an inclusive chronological interval
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether start <= t <= end
func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start) && !t.After(d.End)
}

// FilterCriteria is a set of optional constraints combined with logical AND.
// A nil field means no restriction.
type FilterCriteria struct {
	DateRange  *DateRange
	ExactValue *float64
	MinValue   *float64
	MaxValue   *float64
}

// IsEmpty reports whether no constraint is present
func (c FilterCriteria) IsEmpty() bool {
	return c.DateRange == nil && c.ExactValue == nil && c.MinValue == nil && c.MaxValue == nil
}

// HasExactValue reports whether the exact-equality constraint is present
func (c FilterCriteria) HasExactValue() bool {
	return c.ExactValue != nil
}

// Matches reports whether a record satisfies every present constraint.
// ExactValue uses float equality without tolerance.
func (c FilterCriteria) Matches(r RainfallRecord) bool {
	if c.DateRange != nil && !c.DateRange.Contains(r.Time) {
		return false
	}
	if c.ExactValue != nil && r.Value != *c.ExactValue {
		return false
	}
	if c.MinValue != nil && !(r.Value >= *c.MinValue) {
		return false
	}
	if c.MaxValue != nil && !(r.Value <= *c.MaxValue) {
		return false
	}
	return true
}

// ValueCounts maps each distinct value to its number of occurrences
type ValueCounts map[float64]int

// MarshalJSON renders keys the way the dataset's values are printed, e.g. "1.0", "0.25"
func (v ValueCounts) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(v))
	for value, count := range v {
		out[FormatValueKey(value)] = count
	}
	return json.Marshal(out)
}

// FormatValueKey formats a value with the shortest exact representation,
// keeping a trailing ".0" on integral values.
func FormatValueKey(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// StatisticsSummary holds descriptive statistics over a filtered record set.
// Every field, TotalCount included, is nil when undefined for the input.
type StatisticsSummary struct {
	Mean              *float64    `json:"mean"`
	Median            *float64    `json:"median"`
	StandardDeviation *float64    `json:"standard_deviation"`
	Range             *float64    `json:"range"`
	Highest           *float64    `json:"highest"`
	Lowest            *float64    `json:"lowest"`
	TotalCount        *int        `json:"total_count"`
	ValueCounts       ValueCounts `json:"-"`
}
