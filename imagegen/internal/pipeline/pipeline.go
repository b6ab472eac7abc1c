// Package pipeline orchestrates the image generation flow: vision metadata
// extraction, two generation rounds, per-image inpainting enhancement, and
// object storage upload.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gi-connect/gi-connect-stack/common/gcauth"
	"github.com/gi-connect/gi-connect-stack/common/logging"
	"github.com/gi-connect/gi-connect-stack/imagegen/internal/metrics"
)

// ModelClient is the subset of the generative model client the pipeline uses.
type ModelClient interface {
	ExtractMetadata(ctx context.Context, token string, image []byte, mimeType, productName string) (map[string]interface{}, error)
	GenerateImages(ctx context.Context, token, prompt string, count int, source []byte) ([][]byte, error)
	Inpaint(ctx context.Context, token string, image []byte, prompt string) ([]byte, error)
}

// Uploader persists one image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, token, objectName string, data []byte, contentType string) (string, error)
}

// TokenIssuer mints the bearer token shared by all model and storage calls
// of a single run.
type TokenIssuer interface {
	Token(ctx context.Context, cred *gcauth.Credential, scope string) (string, error)
}

type Request struct {
	ImageURL    string
	ProductName string
	MakerID     string
}

type Result struct {
	Metadata  map[string]interface{}
	ImageURLs []string
}

type Pipeline struct {
	model     ModelClient
	store     Uploader
	issuer    TokenIssuer
	scope     string
	maxImages int
	fetch     *http.Client
	now       func() time.Time
	log       *logging.Logger
}

func New(model ModelClient, store Uploader, issuer TokenIssuer, scope string, maxImages int, fetchTimeout time.Duration, log *logging.Logger) *Pipeline {
	if maxImages < 1 || maxImages > 4 {
		maxImages = 4
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Pipeline{
		model:     model,
		store:     store,
		issuer:    issuer,
		scope:     scope,
		maxImages: maxImages,
		fetch:     &http.Client{Timeout: fetchTimeout},
		now:       time.Now,
		log:       log,
	}
}

// Run executes the full linear flow. Any failure before the upload stage
// aborts the run; an inpainting failure for a single image degrades that
// image to its unenhanced original instead. Returned URLs preserve
// generation order: the text-to-image round first, then image-to-image.
func (p *Pipeline) Run(ctx context.Context, cred *gcauth.Credential, req Request) (*Result, error) {
	source, mimeType, err := p.fetchSource(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}

	token, err := p.issuer.Token(ctx, cred, p.scope)
	if err != nil {
		return nil, err
	}

	visionTimer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("vision"))
	metadata, err := p.model.ExtractMetadata(ctx, token, source, mimeType, req.ProductName)
	visionTimer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(req.ProductName, metadata)

	genTimer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("generate"))
	textImages, err := p.model.GenerateImages(ctx, token, prompt, p.maxImages, nil)
	if err != nil {
		genTimer.ObserveDuration()
		return nil, err
	}
	conditioned, err := p.model.GenerateImages(ctx, token, prompt, p.maxImages, source)
	genTimer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	images := append(textImages, conditioned...)

	inpaintTimer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("inpaint"))
	enhanced := p.enhanceAll(ctx, token, images, prompt)
	inpaintTimer.ObserveDuration()

	uploadTimer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues("upload"))
	urls, err := p.uploadAll(ctx, token, req.MakerID, enhanced)
	uploadTimer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	metrics.ImagesGenerated.Add(float64(len(urls)))

	return &Result{Metadata: metadata, ImageURLs: urls}, nil
}

func (p *Pipeline) fetchSource(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build source image request: %w", err)
	}

	resp, err := p.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("source image returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read source image: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	return data, mimeType, nil
}

// enhanceAll inpaints every image, at most maxImages in flight at once.
// Output order matches input order regardless of completion order.
func (p *Pipeline) enhanceAll(ctx context.Context, token string, images [][]byte, prompt string) [][]byte {
	out := make([][]byte, len(images))
	sem := make(chan struct{}, p.maxImages)
	var wg sync.WaitGroup

	for i, img := range images {
		wg.Add(1)
		go func(i int, img []byte) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			enhanced, err := p.model.Inpaint(ctx, token, img, prompt)
			if err != nil || len(enhanced) == 0 {
				// Degrade to the unenhanced original; one bad enhancement
				// never fails the run.
				metrics.InpaintFallbacks.Inc()
				p.log.WarnContext(ctx, "inpainting failed, keeping original", "index", i, "error", err)
				out[i] = img
				return
			}
			out[i] = enhanced
		}(i, img)
	}
	wg.Wait()

	return out
}

func (p *Pipeline) uploadAll(ctx context.Context, token, makerID string, images [][]byte) ([]string, error) {
	if makerID == "" {
		makerID = "anonymous"
	}
	stamp := p.now().UTC().Unix()

	urls := make([]string, 0, len(images))
	for i, img := range images {
		objectName := fmt.Sprintf("products/%s/%d-%02d.png", makerID, stamp, i)
		url, err := p.store.Upload(ctx, token, objectName, img, "image/png")
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	return urls, nil
}

func buildPrompt(productName string, metadata map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional studio product photograph of %s, a geographically-indicated artisan product", productName)

	for _, key := range []string{"style", "material", "craft_technique", "setting_suggestion"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			b.WriteString(", ")
			b.WriteString(v)
		}
	}
	if colors, ok := metadata["colors"].([]interface{}); ok && len(colors) > 0 {
		names := make([]string, 0, len(colors))
		for _, c := range colors {
			if s, ok := c.(string); ok {
				names = append(names, s)
			}
		}
		if len(names) > 0 {
			b.WriteString(", in ")
			b.WriteString(strings.Join(names, " and "))
		}
	}
	b.WriteString(", soft natural lighting, high detail")

	return b.String()
}
