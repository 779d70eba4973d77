package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Static errors for Stability client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided.
	ErrAPIKeyNotSet = errors.New("stability: API key is required")
	// ErrImageRequired is returned when the submit call carries no image bytes.
	ErrImageRequired = errors.New("stability: image data is required")
	// ErrJobIDRequired is returned when the job ID is not provided.
	ErrJobIDRequired = errors.New("stability: job ID is required")
	// ErrNoJobIDReturned is returned when the submit response contains no job ID.
	ErrNoJobIDReturned = errors.New("stability: submit failed: no job ID returned")
	// ErrMalformedResponse is returned when a success response cannot be decoded.
	ErrMalformedResponse = errors.New("stability: malformed response")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("stability: request failed")
)

const (
	submitPath      = "/v2beta/image-to-video"
	resultPathFmt   = "/v2beta/image-to-video/result/%s"
	defaultVideoMIM = "video/mp4"
)

// Client defines the interface for interacting with the Stability API.
type Client interface {
	// Submit uploads an image and returns the generation ID.
	Submit(ctx context.Context, img Image, opts SubmitOptions) (jobID string, err error)

	// Poll fetches the generation result once.
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of the Stability Client interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
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

// WithBaseURL sets a custom base URL for the Stability API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a new Stability HTTP client.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &HTTPClient{
		apiKey:     apiKey,
		baseURL:    "https://api.stability.ai",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Submit uploads the image as multipart form data and returns the generation ID.
func (c *HTTPClient) Submit(ctx context.Context, img Image, opts SubmitOptions) (string, error) {
	if len(img.Data) == 0 {
		return "", ErrImageRequired
	}

	body, contentType, err := encodeMultipart(img, opts)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+submitPath, body, contentType, "application/json")
	if err != nil {
		return "", err
	}

	var out submitResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if out.ID == "" {
		return "", ErrNoJobIDReturned
	}

	return out.ID, nil
}

// Poll fetches the result endpoint once. A 202 answer means the
// generation is still running; a 200 answer carries the video bytes.
func (c *HTTPClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	if jobID == "" {
		return PollResult{}, ErrJobIDRequired
	}

	u := c.baseURL + fmt.Sprintf(resultPathFmt, url.PathEscape(jobID))

	resp, err := c.do(ctx, http.MethodGet, u, nil, "", "video/*")
	if err != nil {
		return PollResult{}, err
	}

	if resp.statusCode == http.StatusAccepted {
		return PollResult{Status: StatusInProgress}, nil
	}

	contentType := resp.contentType
	if contentType == "" {
		contentType = defaultVideoMIM
	}

	return PollResult{
		Status:      StatusComplete,
		Video:       resp.body,
		ContentType: contentType,
	}, nil
}

// response is a fully read HTTP response.
type response struct {
	statusCode  int
	contentType string
	body        []byte
}

// do performs a single HTTP request. Non-2xx answers are returned as *APIError.
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte, contentType, accept string) (*response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("stability: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stability: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stability: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode:  resp.StatusCode,
			Body:        respBody,
			ContentType: resp.Header.Get("Content-Type"),
		}
		var envelope errorResponse
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Name = envelope.Name
		}
		return nil, apiErr
	}

	return &response{
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        respBody,
	}, nil
}

// encodeMultipart builds the multipart body for the submit call. The image
// part carries the declared content type rather than application/octet-stream.
func encodeMultipart(img Image, opts SubmitOptions) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = "image"
	}
	partContentType := img.ContentType
	if partContentType == "" {
		partContentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", partContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("stability: create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("stability: write image part: %w", err)
	}

	fields := map[string]string{
		"seed":             strconv.Itoa(opts.Seed),
		"cfg_scale":        strconv.FormatFloat(opts.CfgScale, 'f', -1, 64),
		"motion_bucket_id": strconv.Itoa(opts.MotionBucketID),
	}
	if opts.Prompt != "" {
		fields["prompt"] = opts.Prompt
	}
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("stability: write field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("stability: close multipart writer: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
