// Package genai is a REST client for the generative model endpoints used by
// the image pipeline: vision metadata extraction, text/image-to-image
// generation, and inpainting enhancement.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UpstreamError reports a model endpoint call that failed.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Detail)
}

type Client struct {
	baseURL     string
	visionModel string
	imageModel  string
	httpClient  *http.Client
}

func New(baseURL, visionModel, imageModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		visionModel: visionModel,
		imageModel:  imageModel,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

const visionPrompt = `You are cataloguing a geographically-indicated artisan product named %q.
Describe the photographed product as JSON with the fields "style", "material",
"colors" (array of strings), "craft_technique" and "setting_suggestion".
Return only JSON.`

// ExtractMetadata asks the vision model to describe the source image as
// structured JSON. A response that is not parseable JSON yields an empty
// metadata map, not an error; the pipeline never aborts on metadata alone.
func (c *Client) ExtractMetadata(ctx context.Context, token string, image []byte, mimeType, productName string) (map[string]interface{}, error) {
	reqBody := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: fmt.Sprintf(visionPrompt, productName)},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.visionModel)

	body, err := c.post(ctx, token, "vision extraction", endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return map[string]interface{}{}, nil
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return map[string]interface{}{}, nil
	}

	metadata := map[string]interface{}{}
	if err := json.Unmarshal([]byte(parsed.Candidates[0].Content.Parts[0].Text), &metadata); err != nil {
		return map[string]interface{}{}, nil
	}

	return metadata, nil
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string     `json:"prompt"`
	Image  *imageData `json:"image,omitempty"`
}

type imageData struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type predictParameters struct {
	SampleCount int         `json:"sampleCount"`
	EditConfig  *editConfig `json:"editConfig,omitempty"`
}

type editConfig struct {
	EditMode string `json:"editMode"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
}

// GenerateImages runs one generation round. With a nil source it is pure
// text-to-image; with source bytes the image conditions the generation.
func (c *Client) GenerateImages(ctx context.Context, token, prompt string, count int, source []byte) ([][]byte, error) {
	instance := predictInstance{Prompt: prompt}
	if len(source) > 0 {
		instance.Image = &imageData{BytesBase64Encoded: base64.StdEncoding.EncodeToString(source)}
	}

	reqBody := predictRequest{
		Instances:  []predictInstance{instance},
		Parameters: predictParameters{SampleCount: count},
	}

	endpoint := fmt.Sprintf("%s/models/%s:predict", c.baseURL, c.imageModel)

	body, err := c.post(ctx, token, "image generation", endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &UpstreamError{Operation: "image generation", StatusCode: http.StatusOK, Detail: "unparseable prediction response"}
	}

	images := make([][]byte, 0, len(parsed.Predictions))
	for _, p := range parsed.Predictions {
		decoded, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			return nil, &UpstreamError{Operation: "image generation", StatusCode: http.StatusOK, Detail: "prediction is not valid base64"}
		}
		images = append(images, decoded)
	}

	return images, nil
}

// Inpaint asks the model to enhance a single generated image.
func (c *Client) Inpaint(ctx context.Context, token string, image []byte, prompt string) ([]byte, error) {
	reqBody := predictRequest{
		Instances: []predictInstance{{
			Prompt: prompt,
			Image:  &imageData{BytesBase64Encoded: base64.StdEncoding.EncodeToString(image)},
		}},
		Parameters: predictParameters{
			SampleCount: 1,
			EditConfig:  &editConfig{EditMode: "EDIT_MODE_INPAINT_INSERTION"},
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:predict", c.baseURL, c.imageModel)

	body, err := c.post(ctx, token, "inpainting", endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Predictions) == 0 {
		return nil, &UpstreamError{Operation: "inpainting", StatusCode: http.StatusOK, Detail: "no prediction returned"}
	}

	decoded, err := base64.StdEncoding.DecodeString(parsed.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, &UpstreamError{Operation: "inpainting", StatusCode: http.StatusOK, Detail: "prediction is not valid base64"}
	}

	return decoded, nil
}

func (c *Client) post(ctx context.Context, token, operation, endpoint string, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Detail: truncate(string(body), 200)}
	}

	return body, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
