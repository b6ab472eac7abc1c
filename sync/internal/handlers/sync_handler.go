package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gi-connect/gi-connect-stack/common/gcauth"
	"github.com/gi-connect/gi-connect-stack/common/httputil"
	"github.com/gi-connect/gi-connect-stack/common/logging"
	"github.com/gi-connect/gi-connect-stack/sync/internal/audit"
	"github.com/gi-connect/gi-connect-stack/sync/internal/config"
	"github.com/gi-connect/gi-connect-stack/sync/internal/metrics"
	"github.com/gi-connect/gi-connect-stack/sync/internal/models"
	"github.com/gi-connect/gi-connect-stack/sync/internal/warehouse"
)

// TokenIssuer mints a bearer token for the warehouse scope.
type TokenIssuer interface {
	Token(ctx context.Context, cred *gcauth.Credential, scope string) (string, error)
}

// Warehouse is the subset of the warehouse client the handlers use.
type Warehouse interface {
	InsertRows(ctx context.Context, token, dataset, table string, rows []map[string]interface{}) error
	Query(ctx context.Context, token, sql string, params []warehouse.QueryParameter) ([]map[string]string, error)
}

type SyncHandler struct {
	cfg    *config.Config
	issuer TokenIssuer
	wh     Warehouse
	audit  *audit.Publisher
	log    *logging.Logger
}

func NewSyncHandler(cfg *config.Config, issuer TokenIssuer, wh Warehouse, pub *audit.Publisher, log *logging.Logger) *SyncHandler {
	return &SyncHandler{
		cfg:    cfg,
		issuer: issuer,
		wh:     wh,
		audit:  pub,
		log:    log,
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// normalizeTimestamp canonicalizes the inbound timestamp to RFC3339 UTC.
func normalizeTimestamp(s string) (string, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("unrecognized timestamp %q", s)
}

func (h *SyncHandler) SyncEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	// Validation happens before any credential or network work.
	for field, value := range map[string]string{
		"event_id":    req.EventID,
		"event_type":  req.EventType,
		"vendor_id":   req.VendorID,
		"occurred_at": req.OccurredAt,
	} {
		if value == "" {
			h.rejectField(w, "event", field)
			return
		}
	}

	occurredAt, err := normalizeTimestamp(req.OccurredAt)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues("event").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "occurred_at must be a valid timestamp")
		return
	}

	row := map[string]interface{}{
		"event_id":    req.EventID,
		"event_type":  req.EventType,
		"vendor_id":   req.VendorID,
		"occurred_at": occurredAt,
	}

	if err := h.insertRow(r.Context(), h.cfg.Warehouse.EventsTable, row); err != nil {
		h.failSync(r.Context(), w, "event", req.VendorID, err)
		return
	}

	h.finishSync(r.Context(), "event", req.VendorID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SyncHandler) SyncOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	for field, value := range map[string]string{
		"vendor_id":  req.VendorID,
		"order_id":   req.OrderID,
		"product_id": req.ProductID,
		"status":     req.Status,
		"region":     req.Region,
		"timestamp":  req.Timestamp,
	} {
		if value == "" {
			h.rejectField(w, "order", field)
			return
		}
	}
	if req.Amount == nil {
		h.rejectField(w, "order", "amount")
		return
	}

	timestamp, err := normalizeTimestamp(req.Timestamp)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues("order").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "timestamp must be a valid timestamp")
		return
	}

	row := map[string]interface{}{
		"vendor_id":  req.VendorID,
		"order_id":   req.OrderID,
		"product_id": req.ProductID,
		"amount":     *req.Amount,
		"status":     req.Status,
		"region":     req.Region,
		"timestamp":  timestamp,
	}

	if err := h.insertRow(r.Context(), h.cfg.Warehouse.OrdersTable, row); err != nil {
		h.failSync(r.Context(), w, "order", req.VendorID, err)
		return
	}

	h.finishSync(r.Context(), "order", req.VendorID)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "result": row})
}

func (h *SyncHandler) SyncProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if req.VendorID == "" {
		h.rejectField(w, "product", "vendor_id")
		return
	}
	if req.Name == "" {
		h.rejectField(w, "product", "name")
		return
	}

	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}
	generatedImages := req.GeneratedImages
	if generatedImages == nil {
		generatedImages = []string{}
	}

	row := map[string]interface{}{
		"vendor_id":          req.VendorID,
		"name":               req.Name,
		"description":        req.Description,
		"price":              req.Price,
		"stock":              stock,
		"region":             req.Region,
		"location":           req.Location,
		"category":           req.Category,
		"maker_id":           req.MakerID,
		"gi_certificate_url": req.GICertificateURL,
		"generated_images":   generatedImages,
	}

	if err := h.insertRow(r.Context(), h.cfg.Warehouse.ProductsTable, row); err != nil {
		h.failSync(r.Context(), w, "product", req.VendorID, err)
		return
	}

	h.finishSync(r.Context(), "product", req.VendorID)
	httputil.WriteJSON(w, http.StatusOK, row)
}

func (h *SyncHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// insertRow runs the per-request auth chain: normalize credential, mint a
// fresh token, perform exactly one insert attempt. No retries.
func (h *SyncHandler) insertRow(ctx context.Context, table string, row map[string]interface{}) error {
	cred, err := gcauth.ParseServiceAccount(h.cfg.Warehouse.CredentialsJSON)
	if err != nil {
		return err
	}

	token, err := h.issuer.Token(ctx, cred, h.cfg.Warehouse.Scope)
	if err != nil {
		return err
	}

	timer := prometheus.NewTimer(metrics.WarehouseCallDuration.WithLabelValues("insert"))
	defer timer.ObserveDuration()

	return h.wh.InsertRows(ctx, token, h.cfg.Warehouse.Dataset, table, []map[string]interface{}{row})
}

func (h *SyncHandler) rejectField(w http.ResponseWriter, kind, field string) {
	metrics.ValidationFailures.WithLabelValues(kind).Inc()
	httputil.WriteError(w, http.StatusBadRequest, field+" required")
}

func (h *SyncHandler) finishSync(ctx context.Context, kind, vendorID string) {
	metrics.RowsSynced.WithLabelValues(kind, "ok").Inc()
	h.audit.Publish(kind, vendorID, "ok")
	h.log.InfoContext(ctx, "row synced", "kind", kind, "vendor_id", vendorID)
}

func (h *SyncHandler) failSync(ctx context.Context, w http.ResponseWriter, kind, vendorID string, err error) {
	metrics.RowsSynced.WithLabelValues(kind, "failed").Inc()
	h.audit.Publish(kind, vendorID, "failed")
	h.log.ErrorContext(ctx, "sync failed", "kind", kind, "vendor_id", vendorID, "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, safeMessage(err))
}

// safeMessage maps internal failures to response text that carries truncated
// downstream detail but no secret material.
func safeMessage(err error) string {
	var normErr *gcauth.NormalizationError
	var tokenErr *gcauth.TokenExchangeError
	var insertErr *warehouse.InsertError
	var queryErr *warehouse.QueryError

	switch {
	case errors.As(err, &normErr):
		return "warehouse credentials are not configured correctly"
	case errors.As(err, &tokenErr):
		return "warehouse authentication failed: " + tokenErr.Body
	case errors.As(err, &insertErr):
		return "warehouse insert failed: " + insertErr.Detail
	case errors.As(err, &queryErr):
		return "warehouse query failed: " + queryErr.Detail
	default:
		return "sync failed"
	}
}
