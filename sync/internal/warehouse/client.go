// Package warehouse is a thin REST client for the tabular data warehouse:
// streaming row inserts and ad-hoc standard-SQL queries.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// InsertError reports an insert call that failed outright or returned
// per-row insert errors.
type InsertError struct {
	StatusCode int
	Detail     string
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("warehouse insert failed (status %d): %s", e.StatusCode, e.Detail)
}

// QueryError reports a query call rejected by the warehouse.
type QueryError struct {
	StatusCode int
	Detail     string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("warehouse query failed (status %d): %s", e.StatusCode, e.Detail)
}

// QueryParameter is a named standard-SQL query parameter. User-supplied
// values always travel as parameters, never interpolated into SQL text.
type QueryParameter struct {
	Name  string
	Type  string // STRING, TIMESTAMP, ...
	Value string
}

type Client struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
}

func New(baseURL, projectID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		projectID:  projectID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type insertRequest struct {
	Rows []insertRow `json:"rows"`
}

type insertRow struct {
	JSON map[string]interface{} `json:"json"`
}

type insertResponse struct {
	InsertErrors []struct {
		Index  int `json:"index"`
		Errors []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"insertErrors"`
}

// InsertRows appends rows to dataset.table via the streaming insert endpoint.
// A non-empty insertErrors list in an otherwise successful response is still
// a failure; rows are either all accepted or the call errors.
func (c *Client) InsertRows(ctx context.Context, token, dataset, table string, rows []map[string]interface{}) error {
	reqBody := insertRequest{Rows: make([]insertRow, 0, len(rows))}
	for _, row := range rows {
		reqBody.Rows = append(reqBody.Rows, insertRow{JSON: row})
	}

	endpoint := fmt.Sprintf("%s/projects/%s/datasets/%s/tables/%s/insertAll", c.baseURL, c.projectID, dataset, table)

	body, status, err := c.post(ctx, token, endpoint, reqBody)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &InsertError{StatusCode: status, Detail: truncate(string(body), 200)}
	}

	var parsed insertResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &InsertError{StatusCode: status, Detail: "unparseable insert response"}
	}
	if len(parsed.InsertErrors) > 0 {
		first := parsed.InsertErrors[0]
		detail := fmt.Sprintf("%d row(s) rejected", len(parsed.InsertErrors))
		if len(first.Errors) > 0 {
			detail = fmt.Sprintf("%s: %s", detail, truncate(first.Errors[0].Message, 150))
		}
		return &InsertError{StatusCode: status, Detail: detail}
	}

	return nil
}

type queryRequest struct {
	Query           string           `json:"query"`
	UseLegacySQL    bool             `json:"useLegacySql"`
	ParameterMode   string           `json:"parameterMode,omitempty"`
	QueryParameters []queryParameter `json:"queryParameters,omitempty"`
}

type queryParameter struct {
	Name          string `json:"name"`
	ParameterType struct {
		Type string `json:"type"`
	} `json:"parameterType"`
	ParameterValue struct {
		Value string `json:"value"`
	} `json:"parameterValue"`
}

type queryResponse struct {
	Schema struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	} `json:"schema"`
	Rows []struct {
		F []struct {
			V interface{} `json:"v"`
		} `json:"f"`
	} `json:"rows"`
}

// Query runs a standard-SQL query and flattens the column-oriented result
// into row maps by positional field-name mapping. All values come back as
// text; no numeric coercion is performed here.
func (c *Client) Query(ctx context.Context, token, sql string, params []QueryParameter) ([]map[string]string, error) {
	reqBody := queryRequest{
		Query:        sql,
		UseLegacySQL: false,
	}
	if len(params) > 0 {
		reqBody.ParameterMode = "NAMED"
		for _, p := range params {
			qp := queryParameter{Name: p.Name}
			qp.ParameterType.Type = p.Type
			qp.ParameterValue.Value = p.Value
			reqBody.QueryParameters = append(reqBody.QueryParameters, qp)
		}
	}

	endpoint := fmt.Sprintf("%s/projects/%s/queries", c.baseURL, c.projectID)

	body, status, err := c.post(ctx, token, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &QueryError{StatusCode: status, Detail: truncate(string(body), 200)}
	}

	var parsed queryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &QueryError{StatusCode: status, Detail: "unparseable query response"}
	}

	results := make([]map[string]string, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		mapped := make(map[string]string, len(parsed.Schema.Fields))
		for i, field := range parsed.Schema.Fields {
			if i >= len(row.F) {
				break
			}
			if s, ok := row.F[i].V.(string); ok {
				mapped[field.Name] = s
			} else {
				mapped[field.Name] = ""
			}
		}
		results = append(results, mapped)
	}

	return results, nil
}

func (c *Client) post(ctx context.Context, token, endpoint string, payload interface{}) ([]byte, int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("warehouse request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read warehouse response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
