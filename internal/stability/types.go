// Package stability provides an HTTP client for the Stability AI image-to-video API.
package stability

import "fmt"

// Status represents the state of a Stability generation.
type Status string

// Stability generation states as observed through the result endpoint.
const (
	StatusInProgress Status = "in-progress" // Result endpoint answered 202
	StatusComplete   Status = "complete"    // Result endpoint answered 200 with video bytes
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete
}

// Image is the raw image sent as the multipart "image" part.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// SubmitOptions contains optional parameters for submitting a generation.
type SubmitOptions struct {
	Prompt         string  // Sent as the "prompt" field when non-empty
	Seed           int     // 0 lets the provider pick a seed
	CfgScale       float64 // How strongly the video sticks to the original image
	MotionBucketID int     // Amount of motion in the output video
}

// DefaultSubmitOptions returns the provider's documented defaults.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Seed:           0,
		CfgScale:       1.8,
		MotionBucketID: 127,
	}
}

// submitResponse represents the response from the image-to-video endpoint.
type submitResponse struct {
	ID string `json:"id"`
}

// errorResponse is the JSON error envelope Stability returns on failures.
type errorResponse struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// PollResult contains the result of polling a generation.
type PollResult struct {
	Status      Status
	Video       []byte // Raw video bytes (only set when Status is StatusComplete)
	ContentType string // Content type declared by the provider
}

// APIError is returned when Stability answers with a non-success status.
// Body is the raw response body.
type APIError struct {
	StatusCode  int
	Body        []byte
	ContentType string
	// Name is the structured error name from the JSON envelope, if present.
	Name string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stability: request failed with status %d: %s", e.StatusCode, string(e.Body))
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}
