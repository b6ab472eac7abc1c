// Package client talks to the sync service over its public HTTP API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type SyncClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSyncClient(baseURL string) *SyncClient {
	return &SyncClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendEvent posts one activity event to the sync relay.
func (c *SyncClient) SendEvent(event map[string]interface{}) error {
	return c.post("/api/v1/sync/event", event, nil)
}

// SendOrder posts one order to the sync relay.
func (c *SyncClient) SendOrder(order map[string]interface{}) error {
	return c.post("/api/v1/sync/order", order, nil)
}

// QueryAnalytics runs an analytics query and returns the raw response object.
func (c *SyncClient) QueryAnalytics(startDate, endDate, vendorID string) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"startDate": startDate,
		"endDate":   endDate,
		"vendor_id": vendorID,
	}
	var result map[string]interface{}
	if err := c.post("/api/v1/analytics/query", payload, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *SyncClient) post(path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errBody)
		if errBody.Error != "" {
			return fmt.Errorf("sync service returned %d: %s", resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("sync service returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
