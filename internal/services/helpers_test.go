package services

import (
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rainfall-platform/internal/models"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

func testDeps(t *testing.T) (*logging.StructuredLogger, *metrics.Collector) {
	t.Helper()
	logger := logging.New(logging.Options{Service: "test", Output: io.Discard})
	return logger, metrics.NewCollectorWithRegistry("rainfall_test", prometheus.NewRegistry())
}

func day(d int) time.Time {
	return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

func intPtr(n int) *int { return &n }

// sampleRecords is the three-day dataset used across the query scenarios
func sampleRecords() []models.RainfallRecord {
	return []models.RainfallRecord{
		{ID: 1, Time: day(1), Value: 1.0},
		{ID: 2, Time: day(2), Value: 3.0},
		{ID: 3, Time: day(3), Value: 1.0},
	}
}
