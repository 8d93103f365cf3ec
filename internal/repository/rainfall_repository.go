package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker/v2"

	"rainfall-platform/internal/models"
	"rainfall-platform/pkg/database"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

// BreakerSettings tunes the circuit breaker guarding record store reads
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial read.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the settings used when none are configured
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// rainfallRepository implements RainfallRepository on top of SQL
type rainfallRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	breaker *gobreaker.CircuitBreaker[[]models.RainfallRecord]
}

// NewRainfallRepository creates a new SQL backed rainfall repository
func NewRainfallRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, settings BreakerSettings) RainfallRepository {
	r := &rainfallRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}

	r.breaker = gobreaker.NewCircuitBreaker[[]models.RainfallRecord](gobreaker.Settings{
		Name:        "record_store",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metricsCollector.StoreBreakerState.Set(float64(to))
			logger.Warn(context.Background(), "[REPO_BREAKER] Record store breaker changed state", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return r
}

// AllRecords retrieves every rainfall record ordered by id
func (r *rainfallRepository) AllRecords(ctx context.Context) ([]models.RainfallRecord, error) {
	records, err := r.breaker.Execute(func() ([]models.RainfallRecord, error) {
		query := `
			SELECT id, time, "RG_A"
			FROM rainfall_data
			ORDER BY id
		`

		var records []models.RainfallRecord
		if err := r.db.SelectContext(ctx, "all_records", &records, query); err != nil {
			return nil, err
		}
		return records, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.metrics.RecordDBError("breaker_open")
		}
		return nil, &models.StoreUnavailableError{Op: "all_records", Err: err}
	}

	if records == nil {
		records = []models.RainfallRecord{}
	}

	r.metrics.DatasetRecords.Set(float64(len(records)))
	return records, nil
}

// Count returns the number of stored records
func (r *rainfallRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, "count_records", &count, `SELECT COUNT(*) FROM rainfall_data`); err != nil {
		return 0, &models.StoreUnavailableError{Op: "count_records", Err: err}
	}
	return count, nil
}

// InsertBatch inserts records in a single transaction
func (r *rainfallRepository) InsertBatch(ctx context.Context, records []*models.RainfallRecord) error {
	if len(records) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(records),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertRecords(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(records)))

	return nil
}

// ReplaceAll deletes the current dataset and inserts records in one transaction
func (r *rainfallRepository) ReplaceAll(ctx context.Context, records []*models.RainfallRecord) error {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM rainfall_data`)
	if err != nil {
		r.metrics.RecordDBError("delete_error")
		return fmt.Errorf("failed to delete records: %w", err)
	}

	if err := r.insertRecords(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	deleted, _ := res.RowsAffected()
	r.metrics.IngestionRecordsTotal.Add(float64(len(records)))
	r.logger.Info(ctx, "[REPO_REPLACE] Dataset replaced", logging.Fields{
		"deleted":     deleted,
		"inserted":    len(records),
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return nil
}

func (r *rainfallRepository) insertRecords(ctx context.Context, tx *sqlx.Tx, records []*models.RainfallRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, r.db.Rebind(`
		INSERT INTO rainfall_data (time, "RG_A")
		VALUES (?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Time.UTC(), rec.Value); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	return nil
}

// HealthCheck performs a repository health check
func (r *rainfallRepository) HealthCheck(ctx context.Context) error {
	if r.breaker.State() == gobreaker.StateOpen {
		return &models.StoreUnavailableError{Op: "health_check", Err: gobreaker.ErrOpenState}
	}
	return r.db.HealthCheck(ctx)
}
