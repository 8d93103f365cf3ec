package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
)

// writeWorkbook saves rows (first row being the header) to a temp .xlsx file
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}

	path := filepath.Join(t.TempDir(), "Data.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func fixtureWorkbook(t *testing.T) string {
	return writeWorkbook(t, [][]interface{}{
		{"time", "RG_A"},
		{"2023-01-01 00:00:00", 1.0},
		{time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC), 3.5},
		{"not a date", 2.0},
		{"2023-01-03", "abc"},
		{"2023-01-04T06:00:00", 0.25},
	})
}

func TestReadRainfallFile(t *testing.T) {
	rows, err := ReadRainfallFile(fixtureWorkbook(t), "")
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "2023-01-01 00:00:00", rows[0].Time)
	assert.Equal(t, "1", rows[0].Value)

	rec, err := rows[1].ToRecord()
	require.NoError(t, err, "date serial cells should convert to timestamps")
	assert.True(t, rec.Time.Equal(time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC)), "got %v", rec.Time)
	assert.Equal(t, 3.5, rec.Value)
}

func TestReadRainfallFile_HeaderBelowTitle(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Rain gauge A export"},
		{"Time", "rg_a", "notes"},
		{"2023-01-01", 0.5, "ok"},
	})

	rows, err := ReadRainfallFile(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.5", rows[0].Value)
}

func TestReadRainfallFile_MissingColumns(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"date", "rain"},
		{"2023-01-01", 0.5},
	})

	_, err := ReadRainfallFile(path, "")
	assert.Error(t, err)
}

func TestReadRainfallFile_UnknownSheet(t *testing.T) {
	_, err := ReadRainfallFile(fixtureWorkbook(t), "Missing")
	assert.Error(t, err)
}

func TestIngestionService_IngestFile(t *testing.T) {
	logger, collector := testDeps(t)
	store := repository.NewMemoryStore()
	svc := NewIngestionService(store, logger, collector)
	ctx := context.Background()

	result, err := svc.IngestFile(ctx, fixtureWorkbook(t), IngestOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, 3, result.SuccessfulRecords)
	assert.Equal(t, 2, result.FailedRecords)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "row 4")
	assert.Contains(t, result.Errors[1], "row 5")

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int64{1, 2, 3}, ids(records))
	assert.Equal(t, 0.25, records[2].Value)
}

func TestIngestionService_SeedIfEmpty(t *testing.T) {
	logger, collector := testDeps(t)
	store := repository.NewMemoryStore()
	svc := NewIngestionService(store, logger, collector)
	ctx := context.Background()
	path := fixtureWorkbook(t)

	first, err := svc.SeedIfEmpty(ctx, path, IngestOptions{})
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, 3, first.SuccessfulRecords)

	second, err := svc.SeedIfEmpty(ctx, path, IngestOptions{})
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestionService_Replace(t *testing.T) {
	logger, collector := testDeps(t)
	store := repository.NewMemoryStore()
	svc := NewIngestionService(store, logger, collector)
	ctx := context.Background()
	path := fixtureWorkbook(t)

	_, err := svc.IngestFile(ctx, path, IngestOptions{})
	require.NoError(t, err)
	_, err = svc.IngestFile(ctx, path, IngestOptions{Replace: true})
	require.NoError(t, err)

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(4), records[0].ID, "ids are never reused")
}

type failingReplaceStore struct {
	*repository.MemoryStore
}

func (f failingReplaceStore) ReplaceAll(context.Context, []*models.RainfallRecord) error {
	return errors.New("disk full")
}

func TestIngestionService_FailedReplaceKeepsDataset(t *testing.T) {
	logger, collector := testDeps(t)
	store := failingReplaceStore{MemoryStore: repository.NewMemoryStore()}
	svc := NewIngestionService(store, logger, collector)
	ctx := context.Background()
	path := fixtureWorkbook(t)

	_, err := svc.IngestFile(ctx, path, IngestOptions{BatchSize: 1})
	require.NoError(t, err)

	_, err = svc.IngestFile(ctx, path, IngestOptions{Replace: true, BatchSize: 1})
	require.Error(t, err)

	records, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3, "nothing inserted or deleted outside the replace")
}

func TestIngestionService_MissingFile(t *testing.T) {
	logger, collector := testDeps(t)
	svc := NewIngestionService(repository.NewMemoryStore(), logger, collector)

	_, err := svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), IngestOptions{})
	assert.Error(t, err)
}

func TestSpreadsheetLoader_FeedsMemoryStore(t *testing.T) {
	logger, collector := testDeps(t)
	loader := NewSpreadsheetLoader(fixtureWorkbook(t), "", logger, collector)
	store := repository.NewMemoryStoreFromLoader(loader)
	ctx := context.Background()

	n, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	svc := NewQueryService(store, logger, collector)
	result, err := svc.Handle(ctx, RawCriteria{StartDate: "2023-01-02", EndDate: "2023-01-31"})
	require.NoError(t, err)
	assert.Equal(t, intPtr(2), result.Statistics.TotalCount)
}
