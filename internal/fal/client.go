package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Static errors for FAL client operations.
var (
	// ErrKeyNotSet is returned when the FAL key is not provided.
	ErrKeyNotSet = errors.New("fal: key is required")
	// ErrModelRequired is returned when the model path is not provided.
	ErrModelRequired = errors.New("fal: model is required")
	// ErrImageURLRequired is returned when the input has no image URL.
	ErrImageURLRequired = errors.New("fal: image URL is required")
	// ErrRequestIDRequired is returned when the request ID is not provided.
	ErrRequestIDRequired = errors.New("fal: request ID is required")
	// ErrMalformedResponse is returned when a success body has neither a request ID nor a video.
	ErrMalformedResponse = errors.New("fal: malformed response")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("fal: request failed")
)

// Client defines the interface for interacting with FAL.
type Client interface {
	// Submit enqueues a generation, or runs it synchronously when the client
	// is in sync mode.
	Submit(ctx context.Context, model string, in Input) (Submission, error)

	// Poll fetches the result of a queued request once.
	Poll(ctx context.Context, model, requestID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of the FAL Client interface.
type HTTPClient struct {
	key        string
	queueURL   string
	syncURL    string
	sync       bool
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithQueueURL sets the base URL of the queue API.
func WithQueueURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.queueURL = strings.TrimRight(u, "/")
	}
}

// WithSyncURL sets the base URL of the synchronous run endpoint.
func WithSyncURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.syncURL = strings.TrimRight(u, "/")
	}
}

// WithSync switches Submit to the synchronous run endpoint.
func WithSync(sync bool) ClientOption {
	return func(hc *HTTPClient) {
		hc.sync = sync
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a new FAL HTTP client.
func NewClient(key string, opts ...ClientOption) (*HTTPClient, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrKeyNotSet
	}

	c := &HTTPClient{
		key:        key,
		queueURL:   "https://queue.fal.run",
		syncURL:    "https://fal.run",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Sync reports whether Submit runs generations synchronously.
func (c *HTTPClient) Sync() bool {
	return c.sync
}

// Submit posts the input to the model. In queue mode the result carries a
// request ID; in sync mode it carries the finished video.
func (c *HTTPClient) Submit(ctx context.Context, model string, in Input) (Submission, error) {
	model = strings.Trim(model, "/")
	if model == "" {
		return Submission{}, ErrModelRequired
	}
	if in.ImageURL == "" {
		return Submission{}, ErrImageURLRequired
	}

	body, err := json.Marshal(in)
	if err != nil {
		return Submission{}, fmt.Errorf("fal: marshal request: %w", err)
	}

	base := c.queueURL
	if c.sync {
		base = c.syncURL
	}

	_, out, err := c.do(ctx, http.MethodPost, base+"/"+model, body)
	if err != nil {
		return Submission{}, err
	}

	switch {
	case out.Video != nil && out.Video.URL != "":
		return Submission{Video: out.Video}, nil
	case out.RequestID != "":
		return Submission{RequestID: out.RequestID}, nil
	default:
		return Submission{}, ErrMalformedResponse
	}
}

// Poll fetches the request result once. A 202 answer or a queue status
// other than COMPLETED means the request is still running.
func (c *HTTPClient) Poll(ctx context.Context, model, requestID string) (PollResult, error) {
	if requestID == "" {
		return PollResult{}, ErrRequestIDRequired
	}
	app := appID(model)
	if app == "" {
		return PollResult{}, ErrModelRequired
	}

	u := fmt.Sprintf("%s/%s/requests/%s", c.queueURL, app, url.PathEscape(requestID))

	statusCode, out, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return PollResult{}, err
	}

	if statusCode == http.StatusAccepted || out.Status == StatusInQueue || out.Status == StatusInProgress {
		status := out.Status
		if status == "" {
			status = StatusInProgress
		}
		return PollResult{Status: status}, nil
	}

	if out.Video == nil || out.Video.URL == "" {
		return PollResult{}, ErrMalformedResponse
	}

	return PollResult{Status: StatusCompleted, Video: out.Video}, nil
}

// do performs a single HTTP request and decodes the success body.
// Non-2xx answers are returned as *APIError.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte) (int, payload, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return 0, payload{}, fmt.Errorf("fal: create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, payload{}, fmt.Errorf("fal: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, payload{}, fmt.Errorf("fal: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, payload{}, &APIError{
			StatusCode:  resp.StatusCode,
			Body:        respBody,
			ContentType: resp.Header.Get("Content-Type"),
			Detail:      parseDetail(respBody),
		}
	}

	var out payload
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return resp.StatusCode, payload{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
	}

	return resp.StatusCode, out, nil
}
