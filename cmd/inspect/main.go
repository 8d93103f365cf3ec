package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
	"rainfall-platform/internal/services"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

// inspect runs a data query straight against the spreadsheet, without a database
func main() {
	dataFile := flag.String("data-file", "./data/Data.xlsx", "Spreadsheet (.xlsx) with time and RG_A columns")
	sheet := flag.String("sheet", "", "Sheet to read (default: first sheet)")
	startDate := flag.String("start-date", "", "Inclusive start, YYYY-MM-DD[THH:MM:SS] (needs -end-date)")
	endDate := flag.String("end-date", "", "Inclusive end, YYYY-MM-DD[THH:MM:SS] (needs -start-date)")
	specific := flag.String("specific", "", "Exact RG_A value")
	minValue := flag.String("min", "", "Minimum RG_A value")
	maxValue := flag.String("max", "", "Maximum RG_A value")
	asJSON := flag.Bool("json", false, "Print the API response body instead of a summary")
	verbose := flag.Bool("v", false, "Log loader progress to stderr")
	flag.Parse()

	level := logging.WarnLevel
	if *verbose {
		level = logging.DebugLevel
	}
	logger := logging.New(logging.Options{
		Service: "rainfall-inspect",
		Version: "1.0.0",
		Level:   level,
		Format:  logging.FormatText,
		Output:  os.Stderr,
	})
	metricsCollector := metrics.NewCollectorWithRegistry("rainfall_inspect", prometheus.NewRegistry())
	ctx := context.Background()

	store := repository.NewMemoryStoreFromLoader(services.NewSpreadsheetLoader(*dataFile, *sheet, logger, metricsCollector))
	if _, err := store.Reload(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *dataFile, err)
		os.Exit(1)
	}

	queryService := services.NewQueryService(store, logger, metricsCollector)
	result, err := queryService.Handle(ctx, services.RawCriteria{
		StartDate:        *startDate,
		EndDate:          *endDate,
		SpecificRainfall: *specific,
		MinRainfall:      *minValue,
		MaxRainfall:      *maxValue,
	})
	if err != nil {
		var fErr *models.FilterError
		if errors.As(err, &fErr) {
			fmt.Fprintf(os.Stderr, "Invalid filter: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printSummary(*dataFile, result)
}

func printSummary(source string, result *services.QueryResult) {
	stats := result.Statistics

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("RAINFALL DATA SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Source:             %s\n", source)
	fmt.Printf("Matching Records:   %d\n", len(result.Records))
	fmt.Printf("Counted Values:     %s\n", formatCount(stats.TotalCount))
	fmt.Printf("Mean:               %s\n", formatStat(stats.Mean))
	fmt.Printf("Median:             %s\n", formatStat(stats.Median))
	fmt.Printf("Std Deviation:      %s\n", formatStat(stats.StandardDeviation))
	fmt.Printf("Lowest:             %s\n", formatStat(stats.Lowest))
	fmt.Printf("Highest:            %s\n", formatStat(stats.Highest))
	fmt.Printf("Range:              %s\n", formatStat(stats.Range))

	for _, w := range result.Warnings {
		fmt.Printf("Warning:            %s\n", w)
	}

	if len(result.ValueCounts) == 0 {
		return
	}

	values := make([]float64, 0, len(result.ValueCounts))
	for v := range result.ValueCounts {
		values = append(values, v)
	}
	sort.Float64s(values)

	fmt.Println(strings.Repeat("-", 80))
	fmt.Println("VALUE COUNTS")
	fmt.Println(strings.Repeat("-", 80))
	for _, v := range values {
		fmt.Printf("  %-16s %d\n", models.FormatValueKey(v), result.ValueCounts[v])
	}
}

func formatStat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}

func formatCount(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *v)
}
