// Package relay forwards chat payloads verbatim to the conversational-AI
// backend and relays its response unchanged. It deliberately performs no
// validation, retries or transformation.
package relay

import (
	"io"
	"net/http"
	"time"

	"github.com/gi-connect/gi-connect-stack/common/httputil"
	"github.com/gi-connect/gi-connect-stack/common/logging"
)

type Relay struct {
	targetURL  string
	httpClient *http.Client
	log        *logging.Logger
}

func New(targetURL string, timeout time.Duration, log *logging.Logger) *Relay {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Relay{
		targetURL: targetURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (rl *Relay) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, rl.targetURL, r.Body)
		if err != nil {
			rl.log.ErrorContext(r.Context(), "relay request creation failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "chat backend unreachable")
			return
		}

		if ct := r.Header.Get("Content-Type"); ct != "" {
			proxyReq.Header.Set("Content-Type", ct)
		} else {
			proxyReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := rl.httpClient.Do(proxyReq)
		if err != nil {
			rl.log.ErrorContext(r.Context(), "relay request failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "chat backend unreachable")
			return
		}
		defer resp.Body.Close()

		// Relay status and body exactly as the backend produced them.
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	})
}
