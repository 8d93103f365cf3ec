package services

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"rainfall-platform/internal/models"
)

// StatisticsPrecision is the number of decimal places reported statistics are rounded to
const StatisticsPrecision = 4

// Summarize computes descriptive statistics over the well-defined values of
// records (see RainfallRecord.HasWellDefinedValue). It never fails: every
// statistic, TotalCount included, is nil when undefined for the input.
// Intermediate values stay finite for any finite input.
func Summarize(records []models.RainfallRecord) models.StatisticsSummary {
	values := make([]float64, 0, len(records))
	counts := make(models.ValueCounts)

	for _, rec := range records {
		if !rec.HasWellDefinedValue() {
			continue
		}
		values = append(values, rec.Value)
		counts[rec.Value]++
	}

	summary := models.StatisticsSummary{ValueCounts: counts}

	n := len(values)
	if n == 0 {
		return summary
	}
	summary.TotalCount = &n

	sort.Float64s(values)

	mean := runningMean(values)

	var median float64
	if n%2 == 1 {
		median = values[n/2]
	} else {
		lo, hi := values[n/2-1], values[n/2]
		median = lo + (hi-lo)/2
	}

	summary.Mean = roundStat(mean)
	summary.Median = roundStat(median)
	summary.Highest = roundStat(values[n-1])
	summary.Lowest = roundStat(values[0])

	if summary.Highest != nil && summary.Lowest != nil {
		// Taken from the rounded extremes so that highest - lowest == range holds
		// at the reported precision.
		spread := decimal.NewFromFloat(*summary.Highest).Sub(decimal.NewFromFloat(*summary.Lowest))
		summary.Range = roundStat(spread.InexactFloat64())
	}

	if n >= 2 {
		summary.StandardDeviation = roundStat(sampleStdDev(values, mean))
	}

	return summary
}

// runningMean averages values without forming their sum
func runningMean(values []float64) float64 {
	mean := 0.0
	for i, v := range values {
		mean += (v - mean) / float64(i+1)
	}
	return mean
}

// sampleStdDev is the n-1 standard deviation around mean. Deviations are
// scaled by the largest one before squaring.
func sampleStdDev(values []float64, mean float64) float64 {
	scale := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v-mean))
	}
	if scale == 0 {
		return 0
	}

	squares := 0.0
	for _, v := range values {
		d := (v - mean) / scale
		squares += d * d
	}
	return scale * math.Sqrt(squares/float64(len(values)-1))
}

// roundStat rounds half away from zero to StatisticsPrecision places.
// Non-finite input has no decimal form and yields nil.
func roundStat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	rounded := decimal.NewFromFloat(v).Round(StatisticsPrecision).InexactFloat64()
	return &rounded
}
