package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_Success(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"name":"ok"}`))
	}))
	defer server.Close()

	uploader := New(server.URL, "https://cdn.test", "gi-images", 5*time.Second)
	url, err := uploader.Upload(context.Background(), "tok",
		"products/maker-1/1700000000-00.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.test/gi-images/products/maker-1/1700000000-00.png", url)
	assert.Equal(t, "/b/gi-images/o", gotPath)
	assert.Contains(t, gotQuery, "uploadType=media")
	assert.Contains(t, gotQuery, "name=products%2Fmaker-1%2F1700000000-00.png")
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, []byte("png-bytes"), gotBody)
}

func TestUpload_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"bucket access denied"}}`))
	}))
	defer server.Close()

	uploader := New(server.URL, "https://cdn.test", "gi-images", 5*time.Second)
	_, err := uploader.Upload(context.Background(), "tok", "o.png", []byte("x"), "image/png")

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusForbidden, uploadErr.StatusCode)
	assert.Contains(t, uploadErr.Detail, "bucket access denied")
}

func TestUpload_NetworkError(t *testing.T) {
	uploader := New("http://127.0.0.1:1", "https://cdn.test", "gi-images", time.Second)
	_, err := uploader.Upload(context.Background(), "tok", "o.png", []byte("x"), "image/png")
	require.Error(t, err)

	var uploadErr *UploadError
	assert.NotErrorAs(t, err, &uploadErr)
}
