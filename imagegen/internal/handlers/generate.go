package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gi-connect/gi-connect-stack/common/gcauth"
	"github.com/gi-connect/gi-connect-stack/common/httputil"
	"github.com/gi-connect/gi-connect-stack/common/logging"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/config"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/genai"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/metrics"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/pipeline"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/storage"
)

// workerSecretHeader carries the shared secret that gates the endpoint.
const workerSecretHeader = "X-Worker-Secret"

// Runner runs the generation pipeline for one request.
type Runner interface {
	Run(ctx context.Context, cred *gcauth.Credential, req pipeline.Request) (*pipeline.Result, error)
}

type GenerateHandler struct {
	cfg  *config.Config
	pipe Runner
	log  *logging.Logger
}

func NewGenerateHandler(cfg *config.Config, pipe Runner, log *logging.Logger) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, pipe: pipe, log: log}
}

type generateRequest struct {
	ImageURL    string `json:"image_url"`
	ProductName string `json:"product_name"`
	MakerID     string `json:"maker_id"`
}

func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	secret := r.Header.Get(workerSecretHeader)
	if h.cfg.Worker.Secret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.Worker.Secret)) != 1 {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid worker secret")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if req.ImageURL == "" {
		httputil.WriteError(w, http.StatusBadRequest, "image_url required")
		return
	}
	if req.ProductName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "product_name required")
		return
	}

	cred, err := gcauth.ParseServiceAccount(h.cfg.Credentials.JSON)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("failed").Inc()
		h.log.ErrorContext(r.Context(), "credential parse failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "model credentials are not configured correctly")
		return
	}

	result, err := h.pipe.Run(r.Context(), cred, pipeline.Request{
		ImageURL:    req.ImageURL,
		ProductName: req.ProductName,
		MakerID:     req.MakerID,
	})
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("failed").Inc()
		h.log.ErrorContext(r.Context(), "pipeline failed", "product", req.ProductName, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, pipelineMessage(err))
		return
	}

	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	h.log.InfoContext(r.Context(), "pipeline completed",
		"product", req.ProductName, "images", len(result.ImageURLs))

	// The response is the vision metadata with the image URLs merged in.
	resp := make(map[string]interface{}, len(result.Metadata)+1)
	for k, v := range result.Metadata {
		resp[k] = v
	}
	resp["generated_images"] = result.ImageURLs

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *GenerateHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func pipelineMessage(err error) string {
	var tokenErr *gcauth.TokenExchangeError
	var modelErr *genai.UpstreamError
	var uploadErr *storage.UploadError

	switch {
	case errors.As(err, &tokenErr):
		return "model authentication failed: " + tokenErr.Body
	case errors.As(err, &modelErr):
		return modelErr.Operation + " failed: " + modelErr.Detail
	case errors.As(err, &uploadErr):
		return "image upload failed: " + uploadErr.Detail
	default:
		return "image generation failed"
	}
}
