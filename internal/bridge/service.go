// Package bridge provides the video job bridge: it validates generation
// requests, submits them to the configured provider and relays poll results.
// It keeps no record of jobs; every call is a single upstream round trip.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/videobridge/internal/generator"
)

// StatusSubmitted is reported for jobs accepted asynchronously by the provider.
const StatusSubmitted = "submitted"

// DefaultTimeout bounds each upstream call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// SubmitInput contains a generation request as received from a client.
// Exactly one of (Image or ImageData) and ImageURL must be set.
type SubmitInput struct {
	// Prompt describes the motion or scene.
	Prompt string `validate:"max=4000"`
	// Image is base64 image data, optionally as a data: URL.
	Image string
	// ImageData is raw image bytes, as received from a multipart upload.
	ImageData []byte
	// ImageURL is a remote image reference.
	ImageURL string `validate:"omitempty,http_url"`
	// MIMEType is the declared content type of the inline image.
	MIMEType string `validate:"omitempty,max=255"`
	// Duration is the requested clip length in seconds; 0 uses the provider default.
	Duration int `validate:"omitempty,min=1,max=30"`
	// UserID identifies the caller in logs only.
	UserID string `validate:"max=256"`
}

// SubmitOutput is the outcome of a successful submission. Either JobID
// (with Status "submitted") or VideoURL is set.
type SubmitOutput struct {
	JobID       string
	Status      string
	VideoURL    string
	ContentType string
}

// Service submits generation requests to the active provider and polls it.
type Service struct {
	provider  string
	gen       generator.Generator
	configErr error
	timeout   time.Duration
	validator *validator.Validate
	logger    *slog.Logger
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithTimeout sets the bound applied to each upstream call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new Service for the named provider. gen may be nil
// when configErr explains why no provider could be built; every call then
// fails with a *ConfigurationError.
func NewService(provider string, gen generator.Generator, configErr error, opts ...Option) *Service {
	if gen == nil && configErr == nil {
		configErr = errors.New("no video provider configured")
	}
	s := &Service{
		provider:  provider,
		gen:       gen,
		configErr: configErr,
		timeout:   DefaultTimeout,
		validator: validator.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the name of the active provider.
func (s *Service) Provider() string {
	return s.provider
}

// Configured reports whether the provider credential is present.
func (s *Service) Configured() bool {
	return s.configErr == nil
}

// Submit validates the request and submits it to the provider with a single call.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	if s.configErr != nil {
		return SubmitOutput{}, &ConfigurationError{Err: s.configErr}
	}

	req, err := s.buildRequest(in)
	if err != nil {
		s.logger.Warn("generation request rejected",
			slog.String("provider", s.provider),
			slog.String("user_id", in.UserID),
			slog.String("error", err.Error()),
		)
		return SubmitOutput{}, err
	}

	s.logger.Info("submitting generation",
		slog.String("provider", s.provider),
		slog.String("user_id", in.UserID),
		slog.String("image_source", imageSource(req)),
		slog.Int("prompt_len", len(req.Prompt)),
		slog.Int("duration", req.DurationSeconds),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	sub, err := s.gen.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, generator.ErrUnsupportedImage) {
			return SubmitOutput{}, invalid("image", err.Error())
		}
		s.logUpstreamError("submit failed", "", err)
		return SubmitOutput{}, err
	}

	switch {
	case sub.IsDirect():
		s.logger.Info("generation completed synchronously",
			slog.String("provider", s.provider),
			slog.String("user_id", in.UserID),
			slog.Duration("elapsed", time.Since(start)),
		)
		return SubmitOutput{VideoURL: sub.VideoURL, ContentType: sub.ContentType}, nil
	case sub.JobID != "":
		s.logger.Info("generation submitted",
			slog.String("provider", s.provider),
			slog.String("user_id", in.UserID),
			slog.String("job_id", sub.JobID),
			slog.Duration("elapsed", time.Since(start)),
		)
		return SubmitOutput{JobID: sub.JobID, Status: StatusSubmitted}, nil
	default:
		err := &generator.UpstreamError{
			Provider: s.provider,
			Kind:     generator.KindMalformed,
			Err:      errors.New("response has neither a job id nor a video"),
		}
		s.logUpstreamError("submit failed", "", err)
		return SubmitOutput{}, err
	}
}

// Poll checks a job once. A processing result carries no video; a done
// result carries either the video bytes or a video URL.
func (s *Service) Poll(ctx context.Context, jobID string) (generator.Result, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return generator.Result{}, invalid("id", "job id is required")
	}
	if s.configErr != nil {
		return generator.Result{}, &ConfigurationError{Err: s.configErr}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.gen.Poll(ctx, jobID)
	if err != nil {
		s.logUpstreamError("poll failed", jobID, err)
		return generator.Result{}, pollError(err)
	}

	if result.Status == generator.StatusDone && len(result.Video) == 0 && result.VideoURL == "" {
		err := &generator.UpstreamError{
			Provider: s.provider,
			Kind:     generator.KindMalformed,
			Err:      errors.New("finished job has no video"),
		}
		s.logUpstreamError("poll failed", jobID, err)
		return generator.Result{}, err
	}

	s.logger.Debug("job polled",
		slog.String("provider", s.provider),
		slog.String("job_id", jobID),
		slog.String("status", string(result.Status)),
	)

	return result, nil
}

// pollError keeps the provider status of quota errors on poll: a 429 while
// polling means slow down, not pay.
func pollError(err error) error {
	ue, ok := generator.AsUpstreamError(err)
	if !ok || ue.Kind != generator.KindQuotaExhausted {
		return err
	}
	rejected := *ue
	rejected.Kind = generator.KindRejected
	return &rejected
}

// buildRequest validates the input and converts it to a provider request.
func (s *Service) buildRequest(in SubmitInput) (generator.Request, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := s.validator.Struct(in); err != nil {
		return generator.Request{}, translateValidation(err)
	}

	hasInline := strings.TrimSpace(in.Image) != "" || len(in.ImageData) > 0
	hasRemote := in.ImageURL != ""

	switch {
	case !hasInline && !hasRemote:
		return generator.Request{}, invalid("image", "one of image or imageUrl is required")
	case hasInline && hasRemote:
		return generator.Request{}, invalid("image", "image and imageUrl are mutually exclusive")
	}

	caps := s.gen.Capabilities()
	if caps.PromptRequired && in.Prompt == "" {
		return generator.Request{}, invalid("prompt", fmt.Sprintf("prompt is required by provider %s", s.provider))
	}
	if hasRemote && !caps.RemoteImage {
		return generator.Request{}, invalid("imageUrl", fmt.Sprintf("provider %s only accepts inline images", s.provider))
	}
	if hasInline && !caps.InlineImage {
		return generator.Request{}, invalid("image", fmt.Sprintf("provider %s only accepts image URLs", s.provider))
	}

	req := generator.Request{
		Prompt:          in.Prompt,
		ImageURL:        in.ImageURL,
		DurationSeconds: in.Duration,
	}
	if !hasInline {
		return req, nil
	}

	data, prefixMIME := in.ImageData, ""
	if len(data) == 0 {
		var err error
		data, prefixMIME, err = decodeImage(in.Image)
		if err != nil {
			return generator.Request{}, err
		}
	}

	contentType, err := resolveMIME(in.MIMEType, prefixMIME, data)
	if err != nil {
		return generator.Request{}, err
	}

	req.Image = data
	req.ImageMIMEType = contentType
	req.ImageFilename = imageFilename(contentType)
	return req, nil
}

// fieldNames maps struct fields to their JSON names for error messages.
var fieldNames = map[string]string{
	"Prompt":   "prompt",
	"ImageURL": "imageUrl",
	"MIMEType": "mimeType",
	"Duration": "duration",
	"UserID":   "userId",
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", err.Error())
	}

	fe := verrs[0]
	field := fieldNames[fe.StructField()]
	if field == "" {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "http_url":
		return invalid(field, "must be an http or https URL")
	case "min", "max":
		if fe.Kind() == reflect.Int {
			return invalid(field, fmt.Sprintf("must be between 1 and 30, got %v", fe.Value()))
		}
		return invalid(field, "is too long")
	default:
		return invalid(field, fmt.Sprintf("failed %q validation", fe.Tag()))
	}
}

func imageSource(req generator.Request) string {
	if req.HasInlineImage() {
		return "inline"
	}
	return "url"
}

func (s *Service) logUpstreamError(msg, jobID string, err error) {
	attrs := []any{
		slog.String("provider", s.provider),
		slog.String("error", err.Error()),
	}
	if jobID != "" {
		attrs = append(attrs, slog.String("job_id", jobID))
	}
	if ue, ok := generator.AsUpstreamError(err); ok {
		attrs = append(attrs,
			slog.String("kind", string(ue.Kind)),
			slog.Int("upstream_status", ue.StatusCode),
		)
	}
	s.logger.Error(msg, attrs...)
}
