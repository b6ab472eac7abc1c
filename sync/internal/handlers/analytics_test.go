package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gi-connect/gi-connect-stack/sync/internal/warehouse"
)

func analyticsPayload() map[string]string {
	return map[string]string{
		"startDate": "2024-01-01",
		"endDate":   "2024-02-01",
		"vendor_id": "v1",
	}
}

func TestAnalytics_Success(t *testing.T) {
	issuer := &mockIssuer{}
	wh := &mockWarehouse{
		queryRows: []map[string]string{{"date": "2024-01-01", "total_sales": "42"}},
	}
	h := newTestHandler(issuer, wh)

	rec := postJSON(t, h.Analytics, "/api/v1/analytics/query", analyticsPayload())

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	for _, section := range []string{"sales_summary", "top_products", "order_status_breakdown", "regional_sales"} {
		rows, ok := body[section].([]interface{})
		require.True(t, ok, section)
		require.Len(t, rows, 1, section)
		row := rows[0].(map[string]interface{})
		assert.Equal(t, "42", row["total_sales"])
	}

	// Four concurrent queries share a single freshly minted token.
	assert.Equal(t, 4, wh.queryCalls)
	assert.Equal(t, 1, issuer.calls)
}

func TestAnalytics_EmptySections(t *testing.T) {
	wh := &mockWarehouse{queryRows: []map[string]string{}}
	h := newTestHandler(&mockIssuer{}, wh)

	rec := postJSON(t, h.Analytics, "/api/v1/analytics/query", analyticsPayload())

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	// Empty sections serialize as [], never null.
	for _, section := range []string{"sales_summary", "top_products", "order_status_breakdown", "regional_sales"} {
		rows, ok := body[section].([]interface{})
		require.True(t, ok, section)
		assert.Empty(t, rows, section)
	}
}

func TestAnalytics_MissingFields(t *testing.T) {
	for _, field := range []string{"startDate", "endDate", "vendor_id"} {
		t.Run(field, func(t *testing.T) {
			issuer := &mockIssuer{}
			wh := &mockWarehouse{}
			h := newTestHandler(issuer, wh)

			payload := analyticsPayload()
			delete(payload, field)

			rec := postJSON(t, h.Analytics, "/api/v1/analytics/query", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, field+" required", decodeBody(t, rec)["error"])
			assert.Zero(t, issuer.calls)
			assert.Zero(t, wh.queryCalls)
		})
	}
}

func TestAnalytics_QueryFailure(t *testing.T) {
	wh := &mockWarehouse{queryErr: &warehouse.QueryError{StatusCode: 400, Detail: "syntax error"}}
	h := newTestHandler(&mockIssuer{}, wh)

	rec := postJSON(t, h.Analytics, "/api/v1/analytics/query", analyticsPayload())

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "warehouse query failed")
}

func TestAnalytics_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&mockIssuer{}, &mockWarehouse{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/query", nil)
	rec := httptest.NewRecorder()
	h.Analytics(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
