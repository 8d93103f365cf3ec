package services

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

const (
	warnExactValue   = "specificRainfall matches by exact floating-point equality; values that differ only in their last digits will not match"
	warnPartialRange = "startDate and endDate must be supplied together; date filter not applied"
)

// RawCriteria holds the unvalidated query parameters of a data request.
// Blank values are treated as absent.
type RawCriteria struct {
	StartDate        string `query:"startDate" validate:"omitempty,iso_timestamp"`
	EndDate          string `query:"endDate" validate:"omitempty,iso_timestamp"`
	SpecificRainfall string `query:"specificRainfall" validate:"omitempty,finite_decimal"`
	MinRainfall      string `query:"minRainfall" validate:"omitempty,finite_decimal"`
	MaxRainfall      string `query:"maxRainfall" validate:"omitempty,finite_decimal"`
}

func (r RawCriteria) trimmed() RawCriteria {
	return RawCriteria{
		StartDate:        strings.TrimSpace(r.StartDate),
		EndDate:          strings.TrimSpace(r.EndDate),
		SpecificRainfall: strings.TrimSpace(r.SpecificRainfall),
		MinRainfall:      strings.TrimSpace(r.MinRainfall),
		MaxRainfall:      strings.TrimSpace(r.MaxRainfall),
	}
}

// QueryResult is the filtered dataset together with its statistics
type QueryResult struct {
	Records     []models.RainfallRecord  `json:"data"`
	Statistics  models.StatisticsSummary `json:"statistics"`
	ValueCounts models.ValueCounts       `json:"value_counts"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// QueryService answers data requests: validate, read the store, filter, summarize
type QueryService struct {
	store    repository.RecordStore
	validate *validator.Validate
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewQueryService creates a new query service
func NewQueryService(store repository.RecordStore, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *QueryService {
	return &QueryService{
		store:    store,
		validate: newCriteriaValidator(),
		logger:   logger,
		metrics:  metricsCollector,
	}
}

func newCriteriaValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("finite_decimal", func(fl validator.FieldLevel) bool {
		_, ok := parseFinite(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("iso_timestamp", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTimestamp(fl.Field().String())
		return err == nil
	})

	return v
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseCriteria validates raw parameters and builds the filter they describe.
// The returned warnings describe parameters that were accepted but behave in a
// way the caller may not expect.
func (s *QueryService) ParseCriteria(raw RawCriteria) (models.FilterCriteria, []string, error) {
	raw = raw.trimmed()
	var criteria models.FilterCriteria

	if err := s.validate.Struct(raw); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			return criteria, nil, toFilterError(vErrs[0])
		}
		return criteria, nil, err
	}

	var warnings []string

	switch {
	case raw.StartDate != "" && raw.EndDate != "":
		start, _ := models.ParseTimestamp(raw.StartDate)
		end, _ := models.ParseTimestamp(raw.EndDate)
		if start.After(end) {
			return criteria, nil, &models.FilterError{
				Parameter: "endDate",
				Value:     raw.EndDate,
				Message:   "must not be earlier than startDate",
			}
		}
		criteria.DateRange = &models.DateRange{Start: start, End: end}
	case raw.StartDate != "" || raw.EndDate != "":
		warnings = append(warnings, warnPartialRange)
	}

	if raw.SpecificRainfall != "" {
		v, _ := parseFinite(raw.SpecificRainfall)
		criteria.ExactValue = &v
		warnings = append(warnings, warnExactValue)
	}
	if raw.MinRainfall != "" {
		v, _ := parseFinite(raw.MinRainfall)
		criteria.MinValue = &v
	}
	if raw.MaxRainfall != "" {
		v, _ := parseFinite(raw.MaxRainfall)
		criteria.MaxValue = &v
	}

	return criteria, warnings, nil
}

func toFilterError(fe validator.FieldError) *models.FilterError {
	value, _ := fe.Value().(string)

	message := "is invalid"
	switch fe.Tag() {
	case "finite_decimal":
		message = "must be a decimal number"
	case "iso_timestamp":
		message = "must be an ISO-8601 date (YYYY-MM-DD) or datetime (YYYY-MM-DDTHH:MM:SS)"
	}

	return &models.FilterError{
		Parameter: fe.Field(),
		Value:     value,
		Message:   message,
	}
}

// Handle validates raw, then filters and summarizes the full dataset.
// A FilterError is returned before the store is read; store failures come
// back as StoreUnavailableError.
func (s *QueryService) Handle(ctx context.Context, raw RawCriteria) (*QueryResult, error) {
	criteria, warnings, err := s.ParseCriteria(raw)
	if err != nil {
		var fErr *models.FilterError
		if errors.As(err, &fErr) {
			s.metrics.RecordQueryRejected(fErr.Parameter)
			s.logger.Warn(ctx, "[QUERY_REJECTED] Invalid filter parameter", logging.Fields{
				"parameter": fErr.Parameter,
				"value":     fErr.Value,
			})
		}
		return nil, err
	}

	records, err := s.store.AllRecords(ctx)
	if err != nil {
		var sErr *models.StoreUnavailableError
		if !errors.As(err, &sErr) {
			err = &models.StoreUnavailableError{Op: "all_records", Err: err}
		}
		s.logger.Error(ctx, "[QUERY_STORE_ERROR] Failed to read record store", nil, err)
		return nil, err
	}

	filtered := ApplyFilter(records, criteria)
	if filtered == nil {
		filtered = []models.RainfallRecord{}
	}

	timer := s.metrics.NewTimer(s.metrics.StatsCalculationDuration)
	summary := Summarize(filtered)
	timer.ObserveDuration()

	s.metrics.RecordQuery(len(records), len(filtered))

	s.logger.Debug(ctx, "[QUERY_COMPLETE] Query answered", logging.Fields{
		"scanned":         len(records),
		"returned":        len(filtered),
		"distinct_values": len(summary.ValueCounts),
		"exact_match":     criteria.HasExactValue(),
	})

	return &QueryResult{
		Records:     filtered,
		Statistics:  summary,
		ValueCounts: summary.ValueCounts,
		Warnings:    warnings,
	}, nil
}
