package repository

import (
	"context"

	"rainfall-platform/internal/models"
)

// RecordStore is the read-only source of rainfall records.
// AllRecords returns every record in an order that is stable for the
// lifetime of the loaded dataset; failures are *models.StoreUnavailableError.
type RecordStore interface {
	AllRecords(ctx context.Context) ([]models.RainfallRecord, error)
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

// RecordWriter populates a store. Only ingestion uses it.
// ReplaceAll swaps the whole dataset atomically: on error the previous
// records are left untouched.
type RecordWriter interface {
	InsertBatch(ctx context.Context, records []*models.RainfallRecord) error
	ReplaceAll(ctx context.Context, records []*models.RainfallRecord) error
}

// RainfallRepository provides data access for rainfall data
type RainfallRepository interface {
	RecordStore
	RecordWriter
}
