// Package fal provides an HTTP client for FAL image-to-video models,
// through either the queue API or the synchronous run endpoint.
package fal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status represents the state of a queued FAL request.
type Status string

// FAL queue states.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Input is the JSON payload sent to an image-to-video model.
type Input struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
	Duration string `json:"duration,omitempty"`
}

// File is a FAL output file reference.
type File struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// payload is the single decoder for every FAL success body: a queue
// acknowledgement, a queue status, or a finished result.
type payload struct {
	RequestID string `json:"request_id,omitempty"`
	Status    Status `json:"status,omitempty"`
	Video     *File  `json:"video,omitempty"`
}

// Submission is the outcome of a submit call. Exactly one of RequestID
// or Video is set.
type Submission struct {
	RequestID string
	Video     *File
}

// PollResult contains the result of polling a queued request.
type PollResult struct {
	Status Status
	Video  *File // Only set when Status is StatusCompleted
}

// APIError is returned when FAL answers with a non-success status.
type APIError struct {
	StatusCode  int
	Body        []byte
	ContentType string
	// Detail is the "detail" message of the error body, if it is a string.
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal: request failed with status %d: %s", e.StatusCode, string(e.Body))
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

// parseDetail extracts the "detail" field when it is a plain string.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var detail string
	if json.Unmarshal(envelope.Detail, &detail) != nil {
		return ""
	}
	return detail
}

// appID returns the "{owner}/{app}" prefix of a model path, which is the
// namespace queue status and result URLs live under.
func appID(model string) string {
	parts := strings.Split(strings.Trim(model, "/"), "/")
	if len(parts) < 2 {
		return strings.Join(parts, "/")
	}
	return parts[0] + "/" + parts[1]
}
