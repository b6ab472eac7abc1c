package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gi-connect/gi-connect-stack/common/middleware"
	"github.com/gi-connect/gi-connect-stack/sync/internal/handlers"
)

// NewRouter constructs a ServeMux with sync API routes registered.
func NewRouter(h *handlers.SyncHandler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/sync/event", h.SyncEvent)
	mux.HandleFunc("/api/v1/sync/order", h.SyncOrder)
	mux.HandleFunc("/api/v1/sync/product", h.SyncProduct)
	mux.HandleFunc("/api/v1/analytics/query", h.Analytics)

	mux.HandleFunc("/healthz", h.Health)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(middleware.CORS(cors)(mux))
}
