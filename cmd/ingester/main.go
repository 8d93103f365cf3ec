package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"rainfall-platform/internal/config"
	"rainfall-platform/internal/repository"
	"rainfall-platform/internal/services"
	"rainfall-platform/pkg/database"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Parse command-line flags; defaults come from the environment
	dataFile := flag.String("data-file", cfg.Ingestion.DataPath, "Spreadsheet (.xlsx) with time and RG_A columns")
	sheet := flag.String("sheet", cfg.Ingestion.Sheet, "Sheet to read (default: first sheet)")
	batchSize := flag.Int("batch-size", cfg.Ingestion.BatchSize, "Number of records inserted per transaction")
	replace := flag.Bool("replace", false, "Delete existing records before ingesting")
	skipMigrate := flag.Bool("skip-migrate", false, "Do not apply schema migrations first")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogOptions("rainfall-ingester", "1.0.0"))
	defer logger.Close()

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting rainfall data ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_file":  *dataFile,
		"sheet":      *sheet,
		"batch_size": *batchSize,
		"replace":    *replace,
		"db_driver":  cfg.DriverName(),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollectorWithRegistry("rainfall_ingester", prometheus.NewRegistry())

	// Initialize database
	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if !*skipMigrate {
		if err := db.Migrate(ctx, database.MigrateUp); err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Failed to apply migrations", logging.Fields{}, err)
		}
	}

	repo := repository.NewRainfallRepository(db, logger, metricsCollector, repository.DefaultBreakerSettings())
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector)

	result, err := ingestionService.IngestFile(ctx, *dataFile, services.IngestOptions{
		Sheet:     *sheet,
		BatchSize: *batchSize,
		Replace:   *replace,
	})
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_file": *dataFile,
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Source:             %s\n", result.Source)
	fmt.Printf("Total Rows:         %d\n", result.TotalRows)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", result.FailedRecords)
		for i, errMsg := range result.Errors {
			if i == 10 {
				fmt.Printf("  ... and %d more errors\n", result.FailedRecords-10)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_rows":         result.TotalRows,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
