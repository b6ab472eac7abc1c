package server

import (
	"net/http"

	"github.com/gi-connect/gi-connect-stack/chat/internal/relay"
	"github.com/gi-connect/gi-connect-stack/common/httputil"
	"github.com/gi-connect/gi-connect-stack/common/middleware"
)

// NewRouter constructs a ServeMux with the chat relay registered.
func NewRouter(rl *relay.Relay, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/v1/chat", rl.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	return middleware.RequestID(middleware.CORS(cors)(mux))
}
