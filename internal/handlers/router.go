package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	AllowedOrigins []string
	// ServerURL is advertised in the OpenAPI document
	ServerURL string
	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler
}

// NewRouter registers every route and wraps them in the middleware chain:
// request id, access log, CORS, compression.
func NewRouter(h *RainfallHandler, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts RouterOptions) http.Handler {
	router := mux.NewRouter()

	h.RegisterRoutes(router)

	router.HandleFunc("/api/docs", SwaggerUI("/api/docs/openapi.json")).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", NewOpenAPIHandler(opts.ServerURL)).Methods("GET")

	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler)
	}

	var handler http.Handler = router
	handler = Compress(handler)
	handler = NewCORSMiddleware(opts.AllowedOrigins)(handler)
	handler = NewAccessLogMiddleware(logger, metricsCollector, router)(handler)
	handler = RequestID(handler)

	return handler
}
