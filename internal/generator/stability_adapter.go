package generator

import (
	"context"
	"errors"

	"github.com/maauso/videobridge/internal/stability"
)

// ProviderStability is the name reported by StabilityAdapter.
const ProviderStability = "stability"

// StabilityAdapter adapts the Stability client to the Generator interface.
type StabilityAdapter struct {
	client   stability.Client
	defaults stability.SubmitOptions
}

// NewStabilityAdapter creates a new Stability generator adapter. defaults
// carries the tuning parameters sent with every submission.
func NewStabilityAdapter(client stability.Client, defaults stability.SubmitOptions) *StabilityAdapter {
	return &StabilityAdapter{client: client, defaults: defaults}
}

// Name returns the provider name.
func (a *StabilityAdapter) Name() string {
	return ProviderStability
}

// Capabilities reports that Stability only takes uploaded image bytes and
// treats the prompt as optional.
func (a *StabilityAdapter) Capabilities() Capabilities {
	return Capabilities{InlineImage: true}
}

// Submit uploads the image to Stability and returns the generation ID.
// Stability has no duration parameter; DurationSeconds is ignored.
func (a *StabilityAdapter) Submit(ctx context.Context, req Request) (Submission, error) {
	if !req.HasInlineImage() {
		return Submission{}, ErrUnsupportedImage
	}

	opts := a.defaults
	opts.Prompt = req.Prompt

	jobID, err := a.client.Submit(ctx, stability.Image{
		Data:        req.Image,
		Filename:    req.ImageFilename,
		ContentType: req.ImageMIMEType,
	}, opts)
	if err != nil {
		return Submission{}, a.classify(err)
	}
	return Submission{JobID: jobID}, nil
}

// Poll checks the generation once.
func (a *StabilityAdapter) Poll(ctx context.Context, jobID string) (Result, error) {
	result, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return Result{}, a.classify(err)
	}

	if !result.Status.IsTerminal() {
		return Result{Status: StatusProcessing}, nil
	}

	return Result{
		Status:      StatusDone,
		Video:       result.Video,
		ContentType: result.ContentType,
	}, nil
}

// stabilityQuotaNames are the structured error names Stability uses for billing failures.
var stabilityQuotaNames = map[string]bool{
	"payment_required":     true,
	"insufficient_balance": true,
}

func (a *StabilityAdapter) classify(err error) error {
	var apiErr *stability.APIError
	if errors.As(err, &apiErr) {
		kind := KindRejected
		if apiErr.StatusCode == 402 || stabilityQuotaNames[apiErr.Name] || mentionsQuota(apiErr.Body) {
			kind = KindQuotaExhausted
		}
		return &UpstreamError{
			Provider:    ProviderStability,
			Kind:        kind,
			StatusCode:  apiErr.StatusCode,
			Body:        apiErr.Body,
			ContentType: apiErr.ContentType,
			Err:         err,
		}
	}

	if errors.Is(err, stability.ErrMalformedResponse) || errors.Is(err, stability.ErrNoJobIDReturned) {
		return malformedError(ProviderStability, err)
	}

	return transportError(ProviderStability, err)
}

// Compile-time check that StabilityAdapter implements Generator.
var _ Generator = (*StabilityAdapter)(nil)
