package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maauso/videobridge/internal/gemini"
)

// ProviderGemini is the name reported by GeminiAdapter.
const ProviderGemini = "gemini"

const defaultVideoContentType = "video/mp4"

// GeminiAdapter adapts the Gemini Veo client to the Generator interface.
// The job handle is the long-running operation name.
type GeminiAdapter struct {
	client gemini.Client
	model  string
}

// NewGeminiAdapter creates a new Gemini generator adapter for the given model.
func NewGeminiAdapter(client gemini.Client, model string) *GeminiAdapter {
	return &GeminiAdapter{client: client, model: model}
}

// Name returns the provider name.
func (a *GeminiAdapter) Name() string {
	return ProviderGemini
}

// Capabilities reports that Veo needs a prompt and inline image bytes.
func (a *GeminiAdapter) Capabilities() Capabilities {
	return Capabilities{PromptRequired: true, InlineImage: true}
}

// Submit starts a Veo operation.
func (a *GeminiAdapter) Submit(ctx context.Context, req Request) (Submission, error) {
	if !req.HasInlineImage() {
		return Submission{}, ErrUnsupportedImage
	}

	op, err := a.client.GenerateVideos(ctx, a.model, gemini.VideoRequest{
		Prompt:          req.Prompt,
		Image:           req.Image,
		ImageMIMEType:   req.ImageMIMEType,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		return Submission{}, a.classify(err)
	}
	if op.Name == "" {
		return Submission{}, malformedError(ProviderGemini, errors.New("operation has no name"))
	}
	return Submission{JobID: op.Name}, nil
}

// Poll fetches the operation once. Finished videos are returned inline when
// the API embedded the bytes, otherwise by URI.
func (a *GeminiAdapter) Poll(ctx context.Context, jobID string) (Result, error) {
	op, err := a.client.GetOperation(ctx, jobID)
	if err != nil {
		return Result{}, a.classify(err)
	}

	if !op.Done {
		return Result{Status: StatusProcessing}, nil
	}

	if op.Error != nil {
		return Result{}, operationError(op.Error)
	}

	if len(op.Videos) == 0 {
		if len(op.FilteredReasons) > 0 {
			body, _ := json.Marshal(map[string]any{
				"error": map[string]any{
					"message": "video withheld by safety filters",
					"reasons": op.FilteredReasons,
				},
			})
			return Result{}, &UpstreamError{
				Provider:    ProviderGemini,
				Kind:        KindRejected,
				StatusCode:  http.StatusUnprocessableEntity,
				Body:        body,
				ContentType: "application/json",
			}
		}
		return Result{}, malformedError(ProviderGemini, errors.New("operation finished without videos"))
	}

	video := op.Videos[0]
	contentType := video.MIMEType
	if contentType == "" {
		contentType = defaultVideoContentType
	}

	if len(video.Data) > 0 {
		return Result{Status: StatusDone, Video: video.Data, ContentType: contentType}, nil
	}
	if video.URI != "" {
		return Result{Status: StatusDone, VideoURL: video.URI, ContentType: contentType}, nil
	}
	return Result{}, malformedError(ProviderGemini, errors.New("video has neither bytes nor URI"))
}

func (a *GeminiAdapter) classify(err error) error {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		kind := KindRejected
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			kind = KindQuotaExhausted
		}
		return &UpstreamError{
			Provider:    ProviderGemini,
			Kind:        kind,
			StatusCode:  apiErr.StatusCode,
			Body:        apiErr.Body,
			ContentType: "application/json",
			Err:         err,
		}
	}

	if errors.Is(err, gemini.ErrNoOperation) {
		return malformedError(ProviderGemini, err)
	}

	return transportError(ProviderGemini, err)
}

// operationError converts the error status of a finished operation.
func operationError(status map[string]any) *UpstreamError {
	code := http.StatusBadGateway
	switch v := status["code"].(type) {
	case float64:
		code = int(v)
	case int:
		code = v
	case int32:
		code = int(v)
	}

	body, err := json.Marshal(map[string]any{"error": status})
	if err != nil {
		body = nil
	}

	kind := KindRejected
	// Operation errors may carry a gRPC code; 8 is RESOURCE_EXHAUSTED.
	if code == http.StatusTooManyRequests || code == 8 || status["status"] == "RESOURCE_EXHAUSTED" {
		kind = KindQuotaExhausted
	}

	return &UpstreamError{
		Provider:    ProviderGemini,
		Kind:        kind,
		StatusCode:  code,
		Body:        body,
		ContentType: "application/json",
	}
}

// Compile-time check that GeminiAdapter implements Generator.
var _ Generator = (*GeminiAdapter)(nil)
