package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gi-connect/gi-connect-stack/common/gcauth"
	"github.com/gi-connect/gi-connect-stack/common/httputil"
	"github.com/gi-connect/gi-connect-stack/sync/internal/metrics"
	"github.com/gi-connect/gi-connect-stack/sync/internal/models"
	"github.com/gi-connect/gi-connect-stack/sync/internal/warehouse"
)

// Vendor and date range always travel as named query parameters; only the
// configured table identifier is interpolated into the SQL text.
const (
	salesSummarySQL = `SELECT DATE(TIMESTAMP(timestamp)) AS date, SUM(amount) AS total_sales, COUNT(*) AS order_count
FROM %s
WHERE vendor_id = @vendor_id AND TIMESTAMP(timestamp) BETWEEN TIMESTAMP(@start_date) AND TIMESTAMP(@end_date)
GROUP BY date ORDER BY date`

	topProductsSQL = `SELECT product_id, COUNT(*) AS order_count, SUM(amount) AS revenue
FROM %s
WHERE vendor_id = @vendor_id AND TIMESTAMP(timestamp) BETWEEN TIMESTAMP(@start_date) AND TIMESTAMP(@end_date)
GROUP BY product_id ORDER BY revenue DESC LIMIT 10`

	orderStatusSQL = `SELECT status, COUNT(*) AS order_count
FROM %s
WHERE vendor_id = @vendor_id AND TIMESTAMP(timestamp) BETWEEN TIMESTAMP(@start_date) AND TIMESTAMP(@end_date)
GROUP BY status`

	regionalSalesSQL = `SELECT region, SUM(amount) AS total_sales
FROM %s
WHERE vendor_id = @vendor_id AND TIMESTAMP(timestamp) BETWEEN TIMESTAMP(@start_date) AND TIMESTAMP(@end_date)
GROUP BY region ORDER BY total_sales DESC`
)

// Analytics runs the four read-only dashboard queries. They share no state
// and have no ordering dependency, so they are dispatched concurrently and
// awaited jointly, sharing one freshly minted token.
func (h *SyncHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.AnalyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	for field, value := range map[string]string{
		"startDate": req.StartDate,
		"endDate":   req.EndDate,
		"vendor_id": req.VendorID,
	} {
		if value == "" {
			metrics.AnalyticsRequests.WithLabelValues("rejected").Inc()
			httputil.WriteError(w, http.StatusBadRequest, field+" required")
			return
		}
	}

	cred, err := gcauth.ParseServiceAccount(h.cfg.Warehouse.CredentialsJSON)
	if err != nil {
		h.failAnalytics(w, r, err)
		return
	}

	token, err := h.issuer.Token(r.Context(), cred, h.cfg.Warehouse.Scope)
	if err != nil {
		h.failAnalytics(w, r, err)
		return
	}

	ordersTable := fmt.Sprintf("`%s.%s.%s`",
		h.cfg.Warehouse.ProjectID, h.cfg.Warehouse.Dataset, h.cfg.Warehouse.OrdersTable)

	params := []warehouse.QueryParameter{
		{Name: "vendor_id", Type: "STRING", Value: req.VendorID},
		{Name: "start_date", Type: "STRING", Value: req.StartDate},
		{Name: "end_date", Type: "STRING", Value: req.EndDate},
	}

	resp := models.AnalyticsResponse{
		SalesSummary:         []map[string]string{},
		TopProducts:          []map[string]string{},
		OrderStatusBreakdown: []map[string]string{},
		RegionalSales:        []map[string]string{},
	}

	queries := []struct {
		sql string
		dst *[]map[string]string
	}{
		{salesSummarySQL, &resp.SalesSummary},
		{topProductsSQL, &resp.TopProducts},
		{orderStatusSQL, &resp.OrderStatusBreakdown},
		{regionalSalesSQL, &resp.RegionalSales},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(queries))

	timer := prometheus.NewTimer(metrics.WarehouseCallDuration.WithLabelValues("query"))
	for i, q := range queries {
		wg.Add(1)
		go func(i int, sql string, dst *[]map[string]string) {
			defer wg.Done()
			rows, err := h.wh.Query(r.Context(), token, fmt.Sprintf(sql, ordersTable), params)
			if err != nil {
				errs[i] = err
				return
			}
			if rows != nil {
				*dst = rows
			}
		}(i, q.sql, q.dst)
	}
	wg.Wait()
	timer.ObserveDuration()

	for _, err := range errs {
		if err != nil {
			h.failAnalytics(w, r, err)
			return
		}
	}

	metrics.AnalyticsRequests.WithLabelValues("ok").Inc()
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) failAnalytics(w http.ResponseWriter, r *http.Request, err error) {
	metrics.AnalyticsRequests.WithLabelValues("failed").Inc()
	h.log.ErrorContext(r.Context(), "analytics query failed", "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, safeMessage(err))
}
