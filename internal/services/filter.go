package services

import (
	"rainfall-platform/internal/models"
)

// ApplyFilter keeps the records that satisfy every constraint in criteria,
// preserving input order. With no constraints the input is returned as is.
// An empty input or a criteria set matching nothing yields an empty slice.
func ApplyFilter(records []models.RainfallRecord, criteria models.FilterCriteria) []models.RainfallRecord {
	if criteria.IsEmpty() {
		return records
	}

	filtered := make([]models.RainfallRecord, 0, len(records))
	for _, rec := range records {
		if criteria.Matches(rec) {
			filtered = append(filtered, rec)
		}
	}

	return filtered
}
