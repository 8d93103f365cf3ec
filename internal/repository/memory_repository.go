package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rainfall-platform/internal/models"
)

// Loader produces the full dataset for a MemoryStore
type Loader interface {
	Load(ctx context.Context) ([]models.RainfallRecord, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context) ([]models.RainfallRecord, error)

// Load calls f(ctx)
func (f LoaderFunc) Load(ctx context.Context) ([]models.RainfallRecord, error) {
	return f(ctx)
}

// ErrNotLoaded is returned by a MemoryStore whose loader has never succeeded
var ErrNotLoaded = errors.New("dataset not loaded")

// MemoryStore holds the dataset in process memory. Reads are concurrent;
// Reload swaps the whole dataset atomically.
type MemoryStore struct {
	mu      sync.RWMutex
	loader  Loader
	records []models.RainfallRecord
	loaded  bool
	nextID  int64
}

// NewMemoryStore creates a store preloaded with records. Records without an
// id are numbered in input order.
func NewMemoryStore(records ...models.RainfallRecord) *MemoryStore {
	m := &MemoryStore{nextID: 1}
	m.replace(records, false)
	return m
}

// NewMemoryStoreFromLoader creates an empty store that fills itself on Reload
func NewMemoryStoreFromLoader(loader Loader) *MemoryStore {
	return &MemoryStore{loader: loader, nextID: 1}
}

// Reload replaces the dataset with a fresh load. Loaded records are numbered
// after every id the store has handed out so far. On failure the previous
// dataset stays in place.
func (m *MemoryStore) Reload(ctx context.Context) (int, error) {
	if m.loader == nil {
		return 0, fmt.Errorf("memory store has no loader")
	}

	records, err := m.loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load dataset: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.replace(records, true)
	return len(m.records), nil
}

// replace must be called with mu held for writing (or before publication).
// With renumber set every record gets a fresh id.
func (m *MemoryStore) replace(records []models.RainfallRecord, renumber bool) {
	out := make([]models.RainfallRecord, len(records))
	copy(out, records)
	for i := range out {
		if renumber || out[i].ID == 0 {
			out[i].ID = m.nextID
		}
		if out[i].ID >= m.nextID {
			m.nextID = out[i].ID + 1
		}
	}
	m.records = out
	m.loaded = true
}

// AllRecords returns a copy of the dataset in load order
func (m *MemoryStore) AllRecords(_ context.Context) ([]models.RainfallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loaded {
		return nil, &models.StoreUnavailableError{Op: "all_records", Err: ErrNotLoaded}
	}

	out := make([]models.RainfallRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Count returns the number of records held
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// HealthCheck fails until a dataset has been loaded
func (m *MemoryStore) HealthCheck(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loaded {
		return &models.StoreUnavailableError{Op: "health_check", Err: ErrNotLoaded}
	}
	return nil
}

// InsertBatch appends records, assigning ids that are never reused
func (m *MemoryStore) InsertBatch(_ context.Context, records []*models.RainfallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		stored := *rec
		stored.ID = m.nextID
		m.nextID++
		m.records = append(m.records, stored)
	}
	m.loaded = true
	return nil
}

// ReplaceAll swaps the dataset for records. Ids keep increasing afterwards.
func (m *MemoryStore) ReplaceAll(_ context.Context, records []*models.RainfallRecord) error {
	out := make([]models.RainfallRecord, len(records))
	for i, rec := range records {
		out[i] = *rec
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.replace(out, true)
	return nil
}

var _ RainfallRepository = (*MemoryStore)(nil)
