package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gi-connect/gi-connect-stack/common/gcauth"
	"github.com/gi-connect/gi-connect-stack/common/logging"
)

type stubIssuer struct{ calls int }

func (s *stubIssuer) Token(ctx context.Context, cred *gcauth.Credential, scope string) (string, error) {
	s.calls++
	return "tok", nil
}

type stubModel struct {
	mu           sync.Mutex
	metadata     map[string]interface{}
	metadataErr  error
	generateErr  error
	inpaintErr   error
	inpaintCalls int
	generateLog  []bool // true when a source image conditioned the round
}

func (m *stubModel) ExtractMetadata(ctx context.Context, token string, image []byte, mimeType, productName string) (map[string]interface{}, error) {
	if m.metadataErr != nil {
		return nil, m.metadataErr
	}
	if m.metadata == nil {
		return map[string]interface{}{}, nil
	}
	return m.metadata, nil
}

func (m *stubModel) GenerateImages(ctx context.Context, token, prompt string, count int, source []byte) ([][]byte, error) {
	m.mu.Lock()
	m.generateLog = append(m.generateLog, source != nil)
	m.mu.Unlock()
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	kind := "txt"
	if source != nil {
		kind = "img"
	}
	out := make([][]byte, count)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("%s-%d", kind, i))
	}
	return out, nil
}

func (m *stubModel) Inpaint(ctx context.Context, token string, image []byte, prompt string) ([]byte, error) {
	m.mu.Lock()
	m.inpaintCalls++
	m.mu.Unlock()
	if m.inpaintErr != nil {
		return nil, m.inpaintErr
	}
	return append([]byte("enhanced-"), image...), nil
}

type stubUploader struct {
	mu      sync.Mutex
	objects []string
	data    [][]byte
	err     error
}

func (u *stubUploader) Upload(ctx context.Context, token, objectName string, data []byte, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.objects = append(u.objects, objectName)
	u.data = append(u.data, data)
	return "https://storage.test/gi-images/" + objectName, nil
}

func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("source-image-bytes"))
	}))
	t.Cleanup(server.Close)
	return server
}

func testPipeline(model *stubModel, store *stubUploader, issuer *stubIssuer, maxImages int) *Pipeline {
	p := New(model, store, issuer, "scope", maxImages, 5*time.Second, logging.New(logging.ParseLevel("error"), "text"))
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p
}

func TestRun_FullFlow(t *testing.T) {
	server := sourceServer(t)
	model := &stubModel{metadata: map[string]interface{}{"style": "handwoven"}}
	store := &stubUploader{}
	issuer := &stubIssuer{}
	p := testPipeline(model, store, issuer, 3)

	result, err := p.Run(context.Background(), &gcauth.Credential{}, Request{
		ImageURL:    server.URL + "/photo.jpg",
		ProductName: "Pashmina shawl",
		MakerID:     "maker-7",
	})
	require.NoError(t, err)

	// Two generation rounds of maxImages each.
	assert.Len(t, result.ImageURLs, 6)
	assert.Equal(t, map[string]interface{}{"style": "handwoven"}, result.Metadata)

	// One token covers the entire run.
	assert.Equal(t, 1, issuer.calls)

	// Text-to-image round first, then the source-conditioned round.
	assert.Equal(t, []bool{false, true}, model.generateLog)
	assert.Equal(t, 6, model.inpaintCalls)

	// Object names are ordered under the maker prefix.
	require.Len(t, store.objects, 6)
	for i, name := range store.objects {
		assert.Equal(t, fmt.Sprintf("products/maker-7/1700000000-%02d.png", i), name)
	}
	assert.True(t, strings.HasPrefix(result.ImageURLs[0], "https://storage.test/"))
}

func TestRun_InpaintFallback(t *testing.T) {
	server := sourceServer(t)
	model := &stubModel{inpaintErr: errors.New("inpaint unavailable")}
	store := &stubUploader{}
	p := testPipeline(model, store, &stubIssuer{}, 2)

	result, err := p.Run(context.Background(), &gcauth.Credential{}, Request{
		ImageURL:    server.URL,
		ProductName: "Blue pottery vase",
	})
	require.NoError(t, err)
	assert.Len(t, result.ImageURLs, 4)

	// Failed enhancements degrade to the unenhanced originals, in order.
	require.Len(t, store.data, 4)
	assert.Equal(t, []byte("txt-0"), store.data[0])
	assert.Equal(t, []byte("txt-1"), store.data[1])
	assert.Equal(t, []byte("img-0"), store.data[2])
	assert.Equal(t, []byte("img-1"), store.data[3])
}

func TestRun_AnonymousMaker(t *testing.T) {
	server := sourceServer(t)
	store := &stubUploader{}
	p := testPipeline(&stubModel{}, store, &stubIssuer{}, 1)

	_, err := p.Run(context.Background(), &gcauth.Credential{}, Request{
		ImageURL:    server.URL,
		ProductName: "Kondapalli toy",
	})
	require.NoError(t, err)

	for _, name := range store.objects {
		assert.True(t, strings.HasPrefix(name, "products/anonymous/"), name)
	}
}

func TestRun_SourceFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := testPipeline(&stubModel{}, &stubUploader{}, &stubIssuer{}, 2)

	_, err := p.Run(context.Background(), &gcauth.Credential{}, Request{
		ImageURL:    server.URL,
		ProductName: "x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestRun_GenerateFailureAborts(t *testing.T) {
	server := sourceServer(t)
	model := &stubModel{generateErr: errors.New("quota exceeded")}
	store := &stubUploader{}
	p := testPipeline(model, store, &stubIssuer{}, 2)

	_, err := p.Run(context.Background(), &gcauth.Credential{}, Request{
		ImageURL:    server.URL,
		ProductName: "x",
	})
	require.Error(t, err)
	assert.Empty(t, store.objects)
}

func TestRun_UploadFailureAborts(t *testing.T) {
	server := sourceServer(t)
	store := &stubUploader{err: errors.New("bucket gone")}
	p := testPipeline(&stubModel{}, store, &stubIssuer{}, 2)

	_, err := p.Run(context.Background(), &gcauth.Credential{}, Request{
		ImageURL:    server.URL,
		ProductName: "x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestNew_ClampsMaxImages(t *testing.T) {
	p := New(&stubModel{}, &stubUploader{}, &stubIssuer{}, "scope", 99, time.Second, logging.New(logging.ParseLevel("error"), "text"))
	assert.Equal(t, 4, p.maxImages)

	p = New(&stubModel{}, &stubUploader{}, &stubIssuer{}, "scope", 0, time.Second, logging.New(logging.ParseLevel("error"), "text"))
	assert.Equal(t, 4, p.maxImages)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("Channapatna doll", map[string]interface{}{
		"style":    "lacquered woodcraft",
		"material": "ivory wood",
		"colors":   []interface{}{"crimson", "gold"},
	})

	assert.Contains(t, prompt, "Channapatna doll")
	assert.Contains(t, prompt, "lacquered woodcraft")
	assert.Contains(t, prompt, "in crimson and gold")
	assert.Contains(t, prompt, "soft natural lighting")

	bare := buildPrompt("plain item", map[string]interface{}{})
	assert.Contains(t, bare, "plain item")
	assert.NotContains(t, bare, ", ,")
}
