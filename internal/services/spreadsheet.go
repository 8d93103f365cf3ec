package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

const (
	timeColumn  = "time"
	valueColumn = "RG_A"

	// headerSearchRows bounds how far down the sheet the header row may appear
	headerSearchRows = 10
)

// ReadRainfallFile reads the time and RG_A columns of an .xlsx workbook.
// An empty sheet name selects the first sheet.
func ReadRainfallFile(path, sheet string) ([]models.RawRainfallRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	return readRainfallRows(f, sheet)
}

// ReadRainfallWorkbook is ReadRainfallFile for an already opened stream
func ReadRainfallWorkbook(r io.Reader, sheet string) ([]models.RawRainfallRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readRainfallRows(f, sheet)
}

func readRainfallRows(f *excelize.File, sheet string) ([]models.RawRainfallRow, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("workbook contains no sheets")
		}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	headerRow, timeIdx, valueIdx, err := findHeader(rows)
	if err != nil {
		return nil, err
	}

	out := make([]models.RawRainfallRow, 0, len(rows)-headerRow-1)
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		timeCell := cellAt(row, timeIdx)
		valueCell := cellAt(row, valueIdx)
		if timeCell == "" && valueCell == "" {
			continue
		}

		out = append(out, models.RawRainfallRow{
			Row:   i + 1,
			Time:  excelTimestamp(timeCell),
			Value: valueCell,
		})
	}

	return out, nil
}

// findHeader locates the row naming both required columns
func findHeader(rows [][]string) (row, timeIdx, valueIdx int, err error) {
	limit := headerSearchRows
	if len(rows) < limit {
		limit = len(rows)
	}

	for i := 0; i < limit; i++ {
		timeIdx, valueIdx = -1, -1
		for j, cell := range rows[i] {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case strings.ToLower(timeColumn):
				timeIdx = j
			case strings.ToLower(valueColumn):
				valueIdx = j
			}
		}
		if timeIdx >= 0 && valueIdx >= 0 {
			return i, timeIdx, valueIdx, nil
		}
	}

	return 0, -1, -1, fmt.Errorf("sheet has no header row with %q and %q columns", timeColumn, valueColumn)
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// excelTimestamp converts a raw date serial to text. Cells that already hold
// text are returned unchanged.
func excelTimestamp(cell string) string {
	serial, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return cell
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return cell
	}
	return t.UTC().Format(models.TimestampLayout + ".000")
}

// spreadsheetLoader feeds a MemoryStore straight from the workbook
type spreadsheetLoader struct {
	path    string
	sheet   string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSpreadsheetLoader creates a Loader that reads the dataset from an .xlsx file.
// Rows that fail validation are skipped and counted as ingestion errors.
func NewSpreadsheetLoader(path, sheet string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) repository.Loader {
	return &spreadsheetLoader{
		path:    path,
		sheet:   sheet,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (l *spreadsheetLoader) Load(ctx context.Context) ([]models.RainfallRecord, error) {
	rows, err := ReadRainfallFile(l.path, l.sheet)
	if err != nil {
		return nil, err
	}

	records := make([]models.RainfallRecord, 0, len(rows))
	skipped := 0
	for i := range rows {
		rec, err := rows[i].ToRecord()
		if err != nil {
			skipped++
			l.metrics.RecordIngestionError("validation_error")
			continue
		}
		records = append(records, *rec)
	}

	l.logger.Info(ctx, "[LOADER_COMPLETE] Dataset loaded from spreadsheet", logging.Fields{
		"path":    l.path,
		"records": len(records),
		"skipped": skipped,
	})

	return records, nil
}
