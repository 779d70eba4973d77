package generator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/maauso/videobridge/internal/fal"
)

// ProviderFAL is the name reported by FALAdapter.
const ProviderFAL = "fal"

// ImageStager turns inline image bytes into a URL a provider can fetch.
type ImageStager interface {
	Stage(ctx context.Context, data []byte, contentType string) (string, error)
}

// FALAdapter adapts the FAL client to the Generator interface.
type FALAdapter struct {
	client fal.Client
	model  string
	stager ImageStager
}

// NewFALAdapter creates a new FAL generator adapter for the given model path.
// stager is used for requests that carry inline image bytes.
func NewFALAdapter(client fal.Client, model string, stager ImageStager) *FALAdapter {
	return &FALAdapter{client: client, model: model, stager: stager}
}

// Name returns the provider name.
func (a *FALAdapter) Name() string {
	return ProviderFAL
}

// Capabilities reports that FAL needs a prompt and accepts both image sources.
func (a *FALAdapter) Capabilities() Capabilities {
	return Capabilities{PromptRequired: true, InlineImage: true, RemoteImage: true}
}

// Submit sends the generation to FAL. In sync mode the finished video URL
// is returned directly.
func (a *FALAdapter) Submit(ctx context.Context, req Request) (Submission, error) {
	imageURL := req.ImageURL
	if imageURL == "" {
		if !req.HasInlineImage() || a.stager == nil {
			return Submission{}, ErrUnsupportedImage
		}
		staged, err := a.stager.Stage(ctx, req.Image, req.ImageMIMEType)
		if err != nil {
			return Submission{}, transportError(ProviderFAL, fmt.Errorf("stage image: %w", err))
		}
		imageURL = staged
	}

	in := fal.Input{Prompt: req.Prompt, ImageURL: imageURL}
	if req.DurationSeconds > 0 {
		in.Duration = strconv.Itoa(req.DurationSeconds)
	}

	sub, err := a.client.Submit(ctx, a.model, in)
	if err != nil {
		return Submission{}, a.classify(err)
	}

	if sub.Video != nil {
		return Submission{VideoURL: sub.Video.URL, ContentType: sub.Video.ContentType}, nil
	}
	return Submission{JobID: sub.RequestID}, nil
}

// Poll checks the queued request once.
func (a *FALAdapter) Poll(ctx context.Context, jobID string) (Result, error) {
	result, err := a.client.Poll(ctx, a.model, jobID)
	if err != nil {
		return Result{}, a.classify(err)
	}

	if !result.Status.IsTerminal() || result.Video == nil {
		return Result{Status: StatusProcessing}, nil
	}

	return Result{
		Status:      StatusDone,
		VideoURL:    result.Video.URL,
		ContentType: result.Video.ContentType,
	}, nil
}

func (a *FALAdapter) classify(err error) error {
	var apiErr *fal.APIError
	if errors.As(err, &apiErr) {
		kind := KindRejected
		switch {
		case apiErr.StatusCode == 402:
			kind = KindQuotaExhausted
		case apiErr.StatusCode == 403 && strings.Contains(strings.ToLower(apiErr.Detail), "exhausted balance"):
			kind = KindQuotaExhausted
		case mentionsQuota(apiErr.Body):
			kind = KindQuotaExhausted
		}
		return &UpstreamError{
			Provider:    ProviderFAL,
			Kind:        kind,
			StatusCode:  apiErr.StatusCode,
			Body:        apiErr.Body,
			ContentType: apiErr.ContentType,
			Err:         err,
		}
	}

	if errors.Is(err, fal.ErrMalformedResponse) {
		return malformedError(ProviderFAL, err)
	}

	return transportError(ProviderFAL, err)
}

// Compile-time check that FALAdapter implements Generator.
var _ Generator = (*FALAdapter)(nil)
