package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visionReply(t *testing.T, text string) []byte {
	t.Helper()

	reply, err := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			},
		}},
	})
	require.NoError(t, err)
	return reply
}

func TestExtractMetadata_ParsesJSON(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(visionReply(t, `{"style":"blue pottery","colors":["cobalt","white"]}`))
	}))
	defer server.Close()

	client := New(server.URL, "gemini-1.5-flash", "imagegeneration@006", 5*time.Second)
	metadata, err := client.ExtractMetadata(context.Background(), "tok", []byte("img"), "image/jpeg", "Jaipur vase")
	require.NoError(t, err)

	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "blue pottery", metadata["style"])
	assert.Equal(t, []interface{}{"cobalt", "white"}, metadata["colors"])

	// Image travels inline, base64 encoded, with structured output requested.
	contents := gotBody["contents"].([]interface{})
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	inline := parts[1].(map[string]interface{})["inlineData"].(map[string]interface{})
	assert.Equal(t, "image/jpeg", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), inline["data"])
	genCfg := gotBody["generationConfig"].(map[string]interface{})
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
}

func TestExtractMetadata_UnparseableIsEmptyMap(t *testing.T) {
	replies := map[string][]byte{
		"prose instead of JSON": nil, // filled below
		"no candidates":         []byte(`{"candidates":[]}`),
		"not JSON at all":       []byte(`<html>backend error</html>`),
	}

	for name := range replies {
		name := name
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reply := replies[name]
				if reply == nil {
					reply = visionReply(t, "This lovely vase features...")
				}
				w.Write(reply)
			}))
			defer server.Close()

			client := New(server.URL, "v", "i", 5*time.Second)
			metadata, err := client.ExtractMetadata(context.Background(), "tok", []byte("img"), "image/jpeg", "x")

			// Metadata is best-effort: unparseable output degrades to empty,
			// never to an error.
			require.NoError(t, err)
			assert.NotNil(t, metadata)
			assert.Empty(t, metadata)
		})
	}
}

func TestExtractMetadata_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "v", "i", 5*time.Second)
	_, err := client.ExtractMetadata(context.Background(), "tok", []byte("img"), "image/jpeg", "x")

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "vision extraction", upstreamErr.Operation)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.StatusCode)
}

func TestGenerateImages_TextToImage(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/imagegeneration@006:predict", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"predictions": []map[string]string{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("one"))},
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("two"))},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "v", "imagegeneration@006", 5*time.Second)
	images, err := client.GenerateImages(context.Background(), "tok", "a prompt", 2, nil)
	require.NoError(t, err)

	require.Len(t, images, 2)
	assert.Equal(t, []byte("one"), images[0])
	assert.Equal(t, []byte("two"), images[1])

	params := gotBody["parameters"].(map[string]interface{})
	assert.Equal(t, float64(2), params["sampleCount"])

	instance := gotBody["instances"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "a prompt", instance["prompt"])
	_, hasImage := instance["image"]
	assert.False(t, hasImage)
}

func TestGenerateImages_SourceConditioned(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{"predictions": []map[string]string{}})
	}))
	defer server.Close()

	client := New(server.URL, "v", "i", 5*time.Second)
	_, err := client.GenerateImages(context.Background(), "tok", "p", 1, []byte("src"))
	require.NoError(t, err)

	instance := gotBody["instances"].([]interface{})[0].(map[string]interface{})
	image := instance["image"].(map[string]interface{})
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("src")), image["bytesBase64Encoded"])
}

func TestGenerateImages_BadBase64(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":"!!not base64!!"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "v", "i", 5*time.Second)
	_, err := client.GenerateImages(context.Background(), "tok", "p", 1, nil)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Contains(t, upstreamErr.Detail, "not valid base64")
}

func TestInpaint_Success(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"predictions": []map[string]string{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("better"))},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "v", "i", 5*time.Second)
	enhanced, err := client.Inpaint(context.Background(), "tok", []byte("raw"), "p")
	require.NoError(t, err)
	assert.Equal(t, []byte("better"), enhanced)

	params := gotBody["parameters"].(map[string]interface{})
	assert.Equal(t, float64(1), params["sampleCount"])
	editCfg := params["editConfig"].(map[string]interface{})
	assert.Equal(t, "EDIT_MODE_INPAINT_INSERTION", editCfg["editMode"])
}

func TestInpaint_NoPrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "v", "i", 5*time.Second)
	_, err := client.Inpaint(context.Background(), "tok", []byte("raw"), "p")

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "inpainting", upstreamErr.Operation)
}
