// Package server provides the HTTP server for the video bridge.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// GenerateVideoRequest is the HTTP request body for submitting a generation.
type GenerateVideoRequest struct {
	// Prompt describes the desired motion.
	Prompt string `json:"prompt"`
	// Image is base64 image data, optionally as a data: URL.
	Image string `json:"image,omitempty"`
	// ImageURL is a remote image reference, mutually exclusive with Image.
	ImageURL string `json:"imageUrl,omitempty"`
	// MIMEType is the declared content type of Image.
	MIMEType string `json:"mimeType,omitempty"`
	// Duration is the requested clip length in seconds.
	Duration int `json:"duration,omitempty"`
	// UserID identifies the caller in logs.
	UserID string `json:"userId,omitempty"`
}

// GenerateVideoResponse is returned on a successful submission. Either
// JobID and Status, or VideoURL, are set.
type GenerateVideoResponse struct {
	JobID       string `json:"jobId,omitempty"`
	Status      string `json:"status,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// VideoResultResponse is the JSON form of a poll result.
type VideoResultResponse struct {
	Status      string `json:"status"`
	VideoURL    string `json:"videoUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Details is the provider error body, embedded as JSON when it parses.
	Details any `json:"details,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Provider is the active video provider.
	Provider string `json:"provider"`
	// Configured reports whether the provider credential is present.
	Configured bool `json:"configured"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidJSON       = "INVALID_JSON"
	CodeValidation        = "VALIDATION_ERROR"
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodeUpstreamRejected  = "UPSTREAM_REJECTED"
	CodeQuotaExhausted    = "QUOTA_EXHAUSTED"
	CodeUpstreamUnreach   = "UPSTREAM_UNREACHABLE"
	CodeUpstreamTimeout   = "UPSTREAM_TIMEOUT"
	CodeMalformedUpstream = "MALFORMED_UPSTREAM_RESPONSE"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
)
