package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rainfall-platform/internal/config"
	"rainfall-platform/internal/handlers"
	"rainfall-platform/internal/repository"
	"rainfall-platform/internal/services"
	"rainfall-platform/pkg/database"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

const (
	serviceName = "rainfall-api"
	version     = "1.0.0"
)

func main() {
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

	logger := logging.New(cfg.LogOptions(serviceName, version))
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[STARTUP] Starting rainfall API server", logging.Fields{
		"version":       version,
		"environment":   cfg.Environment,
		"server_host":   cfg.Server.Host,
		"server_port":   cfg.Server.Port,
		"store_backend": cfg.Store.Backend,
		"db_driver":     cfg.DriverName(),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := metrics.NewCollectorWithRegistry("rainfall_platform", registry)

	store, cleanup, err := openStore(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open record store", logging.Fields{
			"store_backend": cfg.Store.Backend,
		}, err)
	}
	defer cleanup()

	queryService := services.NewQueryService(store, logger, metricsCollector)
	rainfallHandler := handlers.NewRainfallHandler(queryService, store, logger, metricsCollector)

	router := handlers.NewRouter(rainfallHandler, logger, metricsCollector, handlers.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ServerURL:      cfg.ExternalURL(),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info(context.Background(), "[SHUTDOWN] Shutting down server...", logging.Fields{})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "[SERVER_ERROR] Server stopped with error", logging.Fields{}, err)
		cleanup()
		os.Exit(1)
	}

	logger.Info(context.Background(), "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// openStore builds the configured record store. For the database backend the
// schema is migrated and, when enabled, an empty table is seeded from the
// spreadsheet before the first request is served.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (repository.RecordStore, func(), error) {
	ingestOpts := services.IngestOptions{
		Sheet:     cfg.Ingestion.Sheet,
		BatchSize: cfg.Ingestion.BatchSize,
	}

	if cfg.Store.Backend == config.BackendMemory {
		loader := services.NewSpreadsheetLoader(cfg.Ingestion.DataPath, cfg.Ingestion.Sheet, logger, metricsCollector)
		store := repository.NewMemoryStoreFromLoader(loader)

		n, err := store.Reload(ctx)
		if err != nil {
			return nil, nil, err
		}
		metricsCollector.DatasetRecords.Set(float64(n))

		return store, func() {}, nil
	}

	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx, database.MigrateUp); err != nil {
		db.Close()
		return nil, nil, err
	}

	repo := repository.NewRainfallRepository(db, logger, metricsCollector, repository.BreakerSettings{
		ConsecutiveFailures: cfg.Store.BreakerFailures,
		OpenTimeout:         cfg.Store.BreakerTimeout,
	})

	if cfg.Ingestion.SeedOnStartup {
		ingestion := services.NewIngestionService(repo, logger, metricsCollector)
		if _, err := ingestion.SeedIfEmpty(ctx, cfg.Ingestion.DataPath, ingestOpts); err != nil {
			// The API still serves whatever the table holds.
			logger.Error(ctx, "[STARTUP_SEED_ERROR] Failed to seed record store", logging.Fields{
				"data_path": cfg.Ingestion.DataPath,
			}, err)
		}
	}

	return repo, func() { db.Close() }, nil
}
