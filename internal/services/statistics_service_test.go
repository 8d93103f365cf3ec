package services

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainfall-platform/internal/models"
)

func values(vs ...float64) []models.RainfallRecord {
	out := make([]models.RainfallRecord, len(vs))
	for i, v := range vs {
		out[i] = models.RainfallRecord{ID: int64(i + 1), Time: day(1), Value: v}
	}
	return out
}

func TestSummarize_ThreeDayScenario(t *testing.T) {
	summary := Summarize(sampleRecords())

	require.NotNil(t, summary.Mean)
	assert.Equal(t, 1.6667, *summary.Mean)
	assert.Equal(t, 1.0, *summary.Median)
	assert.Equal(t, 1.1547, *summary.StandardDeviation)
	assert.Equal(t, 3.0, *summary.Highest)
	assert.Equal(t, 1.0, *summary.Lowest)
	assert.Equal(t, 2.0, *summary.Range)
	assert.Equal(t, intPtr(3), summary.TotalCount)
	assert.Equal(t, models.ValueCounts{1.0: 2, 3.0: 1}, summary.ValueCounts)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)

	assert.Nil(t, summary.Mean)
	assert.Nil(t, summary.Median)
	assert.Nil(t, summary.StandardDeviation)
	assert.Nil(t, summary.Range)
	assert.Nil(t, summary.Highest)
	assert.Nil(t, summary.Lowest)
	assert.Nil(t, summary.TotalCount)
	assert.NotNil(t, summary.ValueCounts)
	assert.Empty(t, summary.ValueCounts)
}

func TestSummarize_EmptyMarshalsAllNull(t *testing.T) {
	body, err := json.Marshal(Summarize([]models.RainfallRecord{}))
	require.NoError(t, err)

	assert.JSONEq(t, `{"mean": null, "median": null, "standard_deviation": null,
		"range": null, "highest": null, "lowest": null, "total_count": null}`, string(body))
}

func TestSummarize_SingleValueHasNoDeviation(t *testing.T) {
	summary := Summarize(values(3.0))

	assert.Equal(t, intPtr(1), summary.TotalCount)
	assert.Nil(t, summary.StandardDeviation)
	require.NotNil(t, summary.Range)
	assert.Equal(t, 0.0, *summary.Range)
	assert.Equal(t, 3.0, *summary.Median)
}

func TestSummarize_EvenMedian(t *testing.T) {
	summary := Summarize(values(4, 1, 3, 2))

	assert.Equal(t, 2.5, *summary.Median)
	assert.Equal(t, 2.5, *summary.Mean)
	assert.Equal(t, 1.291, *summary.StandardDeviation)
}

func TestSummarize_ExcludesUndefinedValues(t *testing.T) {
	summary := Summarize(values(2, math.NaN(), -9999, math.Inf(1), 4))

	assert.Equal(t, intPtr(2), summary.TotalCount)
	assert.Equal(t, 3.0, *summary.Mean)
	assert.Equal(t, 2.0, *summary.Lowest)
	assert.Equal(t, 4.0, *summary.Highest)
	assert.Equal(t, models.ValueCounts{2: 1, 4: 1}, summary.ValueCounts)
}

func TestSummarize_OnlyUndefinedValues(t *testing.T) {
	summary := Summarize(values(math.NaN(), -1))

	assert.Nil(t, summary.TotalCount)
	assert.Nil(t, summary.Mean)
	assert.Empty(t, summary.ValueCounts)
}

func TestSummarize_RoundsHalfAwayFromZero(t *testing.T) {
	summary := Summarize(values(0.00005, 1.23455))

	assert.Equal(t, 0.0001, *summary.Lowest)
	assert.Equal(t, 1.2346, *summary.Highest)
	assert.Equal(t, 1.2345, *summary.Range)
}

func TestSummarize_RangeEqualsHighestMinusLowest(t *testing.T) {
	inputs := [][]float64{
		{0.1, 0.2, 0.3},
		{1.00005, 0.00005},
		{12.345678, 0.000049, 7.77777},
		{0, 0, 0},
		{1e6 + 0.12345, 0.98765},
	}

	for _, in := range inputs {
		summary := Summarize(values(in...))
		require.NotNil(t, summary.Range)

		diff := decimal.NewFromFloat(*summary.Highest).Sub(decimal.NewFromFloat(*summary.Lowest))
		assert.True(t, diff.Equal(decimal.NewFromFloat(*summary.Range)),
			"highest %v - lowest %v != range %v", *summary.Highest, *summary.Lowest, *summary.Range)
	}
}

func TestSummarize_LargeValuesStayFinite(t *testing.T) {
	tests := []struct {
		name    string
		records []models.RainfallRecord
		mean    float64
		median  float64
		stdDev  float64
		spread  float64
	}{
		{"wide spread", values(1e200, 0), 5e199, 5e199, 1e200 / math.Sqrt2, 1e200},
		{"near float max", values(1.7e308, 1.7e308), 1.7e308, 1.7e308, 0, 0},
		{"float max and zero", values(math.MaxFloat64, 0, math.MaxFloat64), math.MaxFloat64 / 3 * 2, math.MaxFloat64, 0, math.MaxFloat64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var summary models.StatisticsSummary
			require.NotPanics(t, func() { summary = Summarize(tt.records) })

			require.NotNil(t, summary.Mean)
			require.NotNil(t, summary.Median)
			require.NotNil(t, summary.StandardDeviation)
			require.NotNil(t, summary.Range)
			assert.InEpsilon(t, tt.mean, *summary.Mean, 1e-9)
			assert.InEpsilon(t, tt.median, *summary.Median, 1e-9)
			if tt.stdDev == 0 {
				assert.Equal(t, 0.0, *summary.StandardDeviation)
			} else {
				assert.False(t, math.IsInf(*summary.StandardDeviation, 0))
			}
			if tt.spread == 0 {
				assert.Equal(t, 0.0, *summary.Range)
			} else {
				assert.InEpsilon(t, tt.spread, *summary.Range, 1e-9)
			}
		})
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	records := values(0.2, 5.5, 0.2, 3.1, 9.75)

	first := Summarize(records)
	second := Summarize(records)

	assert.Equal(t, first, second)
	assert.Equal(t, 5.5, records[1].Value, "input must not be reordered")
}
