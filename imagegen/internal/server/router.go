package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gi-connect/gi-connect-stack/common/middleware"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/handlers"
)

// NewRouter constructs a ServeMux with imagegen API routes registered.
func NewRouter(h *handlers.GenerateHandler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/images/generate", h.Generate)

	mux.HandleFunc("/healthz", h.Health)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(middleware.CORS(cors)(mux))
}
