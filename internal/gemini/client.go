// Package gemini wraps the Gemini (Veo) long-running video operations of
// google.golang.org/genai behind a small interface.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided.
	ErrAPIKeyNotSet = errors.New("gemini: API key is required")
	// ErrOperationNameRequired is returned when polling without an operation name.
	ErrOperationNameRequired = errors.New("gemini: operation name is required")
	// ErrNoOperation is returned when the SDK returns neither an operation nor an error.
	ErrNoOperation = errors.New("gemini: no operation returned")
)

// VideoRequest is the input of a video generation.
type VideoRequest struct {
	Prompt          string
	Image           []byte
	ImageMIMEType   string
	DurationSeconds int
}

// Video is a generated video, delivered inline or by URI.
type Video struct {
	URI      string
	Data     []byte
	MIMEType string
}

// Operation is a snapshot of a long-running video operation.
type Operation struct {
	Name   string
	Done   bool
	Error  map[string]any // Set when the operation finished with an error
	Videos []Video
	// FilteredReasons lists safety filter reasons when videos were withheld.
	FilteredReasons []string
}

// APIError is returned when the Gemini API answers with an error status.
type APIError struct {
	StatusCode int
	Status     string // e.g. RESOURCE_EXHAUSTED
	Message    string
	Body       []byte // JSON rendering of the error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: request failed with status %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

// Client defines the interface for Veo video operations.
type Client interface {
	// GenerateVideos starts a video generation and returns its operation.
	GenerateVideos(ctx context.Context, model string, req VideoRequest) (*Operation, error)

	// GetOperation fetches the current state of an operation once.
	GetOperation(ctx context.Context, name string) (*Operation, error)
}

// SDKClient implements Client on top of the genai SDK.
type SDKClient struct {
	models     *genai.Models
	operations *genai.Operations
}

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an SDKClient.
type ClientOption func(*clientOptions)

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a Gemini client for the Gemini Developer API.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*SDKClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	o := clientOptions{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &SDKClient{models: client.Models, operations: client.Operations}, nil
}

// GenerateVideos starts a Veo generation from an image and an optional prompt.
func (c *SDKClient) GenerateVideos(ctx context.Context, model string, req VideoRequest) (*Operation, error) {
	var image *genai.Image
	if len(req.Image) > 0 {
		image = &genai.Image{ImageBytes: req.Image, MIMEType: req.ImageMIMEType}
	}

	config := &genai.GenerateVideosConfig{}
	if req.DurationSeconds > 0 {
		config.DurationSeconds = genai.Ptr(int32(req.DurationSeconds))
	}

	op, err := c.models.GenerateVideos(ctx, model, req.Prompt, image, config)
	if err != nil {
		return nil, convertError(err)
	}
	return toOperation(op)
}

// GetOperation fetches the operation by name.
func (c *SDKClient) GetOperation(ctx context.Context, name string) (*Operation, error) {
	if name == "" {
		return nil, ErrOperationNameRequired
	}

	op, err := c.operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: name}, nil)
	if err != nil {
		return nil, convertError(err)
	}
	return toOperation(op)
}

func toOperation(op *genai.GenerateVideosOperation) (*Operation, error) {
	if op == nil {
		return nil, ErrNoOperation
	}

	out := &Operation{
		Name:  op.Name,
		Done:  op.Done,
		Error: op.Error,
	}
	if op.Response == nil {
		return out, nil
	}

	out.FilteredReasons = op.Response.RAIMediaFilteredReasons
	for _, gv := range op.Response.GeneratedVideos {
		if gv == nil || gv.Video == nil {
			continue
		}
		out.Videos = append(out.Videos, Video{
			URI:      gv.Video.URI,
			Data:     gv.Video.VideoBytes,
			MIMEType: gv.Video.MIMEType,
		})
	}
	return out, nil
}

// convertError turns SDK API errors into *APIError and leaves transport
// errors untouched.
func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return newAPIError(*apiErrPtr)
	}
	return err
}

func newAPIError(e genai.APIError) *APIError {
	body, err := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"status":  e.Status,
			"details": e.Details,
		},
	})
	if err != nil {
		body = []byte(e.Message)
	}
	return &APIError{
		StatusCode: e.Code,
		Status:     e.Status,
		Message:    e.Message,
		Body:       body,
	}
}
