package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
	"rainfall-platform/internal/services"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

// RainfallHandler handles rainfall API endpoints
type RainfallHandler struct {
	queryService *services.QueryService
	store        repository.RecordStore
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewRainfallHandler creates a new rainfall handler
func NewRainfallHandler(
	queryService *services.QueryService,
	store repository.RecordStore,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RainfallHandler {
	return &RainfallHandler{
		queryService: queryService,
		store:        store,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Parameter string `json:"parameter,omitempty"`
}

// GetData handles GET /api/data and its legacy alias GET /data
func (h *RainfallHandler) GetData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := routeTemplate(r)
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}()

	query := r.URL.Query()
	raw := services.RawCriteria{
		StartDate:        query.Get("startDate"),
		EndDate:          query.Get("endDate"),
		SpecificRainfall: query.Get("specificRainfall"),
		MinRainfall:      query.Get("minRainfall"),
		MaxRainfall:      query.Get("maxRainfall"),
	}

	result, err := h.queryService.Handle(ctx, raw)
	if err != nil {
		h.handleQueryError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

// handleQueryError maps query failures onto HTTP status codes
func (h *RainfallHandler) handleQueryError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var fErr *models.FilterError
	var sErr *models.StoreUnavailableError

	switch {
	case errors.As(err, &fErr):
		h.metrics.RecordAPIError("invalid_parameter", endpoint)
		h.sendError(w, r, endpoint, fErr.Error(), fErr.Parameter, http.StatusBadRequest)
	case errors.As(err, &sErr):
		h.metrics.RecordAPIError("store_unavailable", endpoint)
		h.sendError(w, r, endpoint, "rainfall data is temporarily unavailable", "", http.StatusServiceUnavailable)
	default:
		h.logger.Error(r.Context(), "[API_GET_DATA_ERROR] Failed to answer data request", logging.Fields{
			"query": r.URL.RawQuery,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "failed to retrieve rainfall data", "", http.StatusInternalServerError)
	}
}

// HealthCheck handles GET /health
func (h *RainfallHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Record store unhealthy", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *RainfallHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *RainfallHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message, parameter string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      statusCode,
		Parameter: parameter,
	}

	h.sendJSON(w, response, statusCode)
}

// routeTemplate labels metrics by route rather than raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return unmatchedRoute
}

// RegisterRoutes registers all rainfall API routes
func (h *RainfallHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/data", h.GetData).Methods("GET")
	router.HandleFunc("/data", h.GetData).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
