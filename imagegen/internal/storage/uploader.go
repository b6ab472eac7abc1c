// Package storage persists generated images to the object store over its
// JSON upload API and derives the public URL for each object.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UploadError reports a failed object upload.
type UploadError struct {
	StatusCode int
	Detail     string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("object upload failed (status %d): %s", e.StatusCode, e.Detail)
}

type Uploader struct {
	uploadBaseURL string
	publicBaseURL string
	bucket        string
	httpClient    *http.Client
}

func New(uploadBaseURL, publicBaseURL, bucket string, timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Uploader{
		uploadBaseURL: strings.TrimSuffix(uploadBaseURL, "/"),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		bucket:        bucket,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// Upload writes data under objectName and returns the object's public URL.
func (u *Uploader) Upload(ctx context.Context, token, objectName string, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/b/%s/o?uploadType=media&name=%s",
		u.uploadBaseURL, u.bucket, url.QueryEscape(objectName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UploadError{StatusCode: resp.StatusCode, Detail: truncate(string(body), 200)}
	}

	return fmt.Sprintf("%s/%s/%s", u.publicBaseURL, u.bucket, objectName), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
