package services

import (
	"context"
	"fmt"
	"time"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

// DefaultBatchSize is used when IngestOptions.BatchSize is not positive
const DefaultBatchSize = 500

// maxReportedErrors caps IngestionResult.Errors; FailedRecords keeps the full count
const maxReportedErrors = 100

// IngestionService loads the rainfall spreadsheet into the record store
type IngestionService struct {
	repo    repository.RainfallRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestOptions controls a single ingestion run
type IngestOptions struct {
	Sheet     string
	BatchSize int
	// Replace swaps the existing dataset for the file's rows atomically
	Replace bool
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	Source            string
	TotalRows         int
	SuccessfulRecords int
	FailedRecords     int
	Skipped           bool
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.RainfallRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SeedIfEmpty ingests path only when the store holds no records
func (s *IngestionService) SeedIfEmpty(ctx context.Context, path string, opts IngestOptions) (*IngestionResult, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	if count > 0 {
		s.logger.Info(ctx, "[INGEST_SKIP] Record store already populated", logging.Fields{
			"records": count,
			"source":  path,
		})
		return &IngestionResult{Source: path, Skipped: true, Errors: make([]string, 0)}, nil
	}

	return s.IngestFile(ctx, path, opts)
}

// IngestFile reads the workbook at path and inserts every valid row in batches.
// With Replace set the existing dataset is swapped for the valid rows in one
// step instead. Invalid rows are counted and reported but do not stop the run.
func (s *IngestionService) IngestFile(ctx context.Context, path string, opts IngestOptions) (*IngestionResult, error) {
	startTime := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"source":     path,
		"sheet":      opts.Sheet,
		"batch_size": batchSize,
		"replace":    opts.Replace,
		"stage":      "INITIALIZATION",
	})

	rows, err := ReadRainfallFile(path, opts.Sheet)
	if err != nil {
		s.metrics.RecordIngestionError("file_error")
		return nil, err
	}

	result := &IngestionResult{
		Source:    path,
		TotalRows: len(rows),
		Errors:    make([]string, 0),
	}

	// In replace mode every valid row is collected and swapped in at once.
	var replacement []*models.RainfallRecord

	batch := make([]*models.RainfallRecord, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := rows[i].ToRecord()
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("validation_error")
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rows[i].Row, err))
			}
			continue
		}

		if opts.Replace {
			replacement = append(replacement, rec)
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	if opts.Replace {
		if err := s.repo.ReplaceAll(ctx, replacement); err != nil {
			s.metrics.RecordIngestionError("replace_error")
			return nil, fmt.Errorf("failed to replace records: %w", err)
		}
		result.SuccessfulRecords = len(replacement)
		s.logger.Info(ctx, "[INGEST_REPLACE] Existing records replaced", logging.Fields{
			"records": len(replacement),
			"stage":   "REPLACE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"source":             path,
		"total_rows":         result.TotalRows,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"stage":              "COMPLETE",
	})

	return result, nil
}
