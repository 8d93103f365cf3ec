package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"rainfall-platform/internal/config"
	"rainfall-platform/pkg/database"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

func main() {
	direction := flag.String("direction", database.MigrateUp, "Migration direction: up or down")
	list := flag.Bool("list", false, "Print the migration files that would run and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	files, err := database.MigrationFiles(cfg.DriverName(), *direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read migrations: %v\n", err)
		os.Exit(1)
	}

	if *list {
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	// Progress goes to stdout; only errors are logged
	logOpts := cfg.LogOptions("rainfall-migrate", "1.0.0")
	logOpts.Level = logging.ErrorLevel
	logOpts.Output = io.Discard
	logger := logging.New(logOpts)
	defer logger.Close()

	db, err := database.Open(cfg.DatabaseConfig(), logger, metrics.NewCollectorWithRegistry("rainfall_migrate", prometheus.NewRegistry()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", db.Driver())
	for _, f := range files {
		fmt.Printf("Running migration: %s\n", f)
	}

	if err := db.Migrate(context.Background(), *direction); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
