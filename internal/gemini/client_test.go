package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient(t.Context(), " ")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestGetOperation_EmptyName(t *testing.T) {
	client, err := NewClient(t.Context(), "g-key")
	require.NoError(t, err)

	_, err = client.GetOperation(t.Context(), "")
	assert.ErrorIs(t, err, ErrOperationNameRequired)
}

func TestToOperation(t *testing.T) {
	t.Run("nil operation", func(t *testing.T) {
		_, err := toOperation(nil)
		assert.ErrorIs(t, err, ErrNoOperation)
	})

	t.Run("pending", func(t *testing.T) {
		op, err := toOperation(&genai.GenerateVideosOperation{Name: "models/veo/operations/op-1"})
		require.NoError(t, err)
		assert.Equal(t, "models/veo/operations/op-1", op.Name)
		assert.False(t, op.Done)
		assert.Empty(t, op.Videos)
	})

	t.Run("done with videos", func(t *testing.T) {
		op, err := toOperation(&genai.GenerateVideosOperation{
			Name: "op-2",
			Done: true,
			Response: &genai.GenerateVideosResponse{
				GeneratedVideos: []*genai.GeneratedVideo{
					nil,
					{Video: &genai.Video{URI: "https://files.example/v.mp4", MIMEType: "video/mp4"}},
					{Video: &genai.Video{VideoBytes: []byte("bytes")}},
				},
			},
		})
		require.NoError(t, err)
		require.Len(t, op.Videos, 2)
		assert.Equal(t, "https://files.example/v.mp4", op.Videos[0].URI)
		assert.Equal(t, "video/mp4", op.Videos[0].MIMEType)
		assert.Equal(t, []byte("bytes"), op.Videos[1].Data)
	})

	t.Run("done with error", func(t *testing.T) {
		op, err := toOperation(&genai.GenerateVideosOperation{
			Name:  "op-3",
			Done:  true,
			Error: map[string]any{"code": float64(400), "message": "bad image"},
		})
		require.NoError(t, err)
		assert.True(t, op.Done)
		assert.Equal(t, "bad image", op.Error["message"])
	})

	t.Run("filtered", func(t *testing.T) {
		op, err := toOperation(&genai.GenerateVideosOperation{
			Done: true,
			Response: &genai.GenerateVideosResponse{
				RAIMediaFilteredReasons: []string{"unsafe content"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"unsafe content"}, op.FilteredReasons)
	})
}

func TestConvertError(t *testing.T) {
	t.Run("value api error", func(t *testing.T) {
		err := convertError(fmt.Errorf("wrapped: %w", genai.APIError{Code: 429, Message: "quota", Status: "RESOURCE_EXHAUSTED"}))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 429, apiErr.StatusCode)
		assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
		assert.JSONEq(t, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED","details":null}}`, string(apiErr.Body))
	})

	t.Run("pointer api error", func(t *testing.T) {
		err := convertError(&genai.APIError{Code: 400, Message: "bad request"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 400, apiErr.StatusCode)
	})

	t.Run("transport error untouched", func(t *testing.T) {
		base := errors.New("dial tcp: connection refused")
		assert.Same(t, base, convertError(base))
	})
}

func TestGenerateVideos_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":predictLongRunning"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client, err := NewClient(t.Context(), "g-key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = client.GenerateVideos(t.Context(), "veo-2.0-generate-001", VideoRequest{
		Prompt:        "pan left",
		Image:         []byte("png"),
		ImageMIMEType: "image/png",
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
}
