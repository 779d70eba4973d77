// Package generator provides the common interface for image-to-video providers.
// The Stability, FAL and Gemini adapters implement this interface; exactly one
// of them is active per deployment.
package generator

import "context"

// Status represents the state of a generation job as seen on a single poll.
type Status string

// Common job statuses across providers.
const (
	StatusProcessing Status = "processing" // Provider is still working; poll again later
	StatusDone       Status = "done"       // Video is ready
	StatusFailed     Status = "failed"     // Provider reported a terminal failure
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Capabilities describes what a provider accepts on submission.
type Capabilities struct {
	PromptRequired bool // Submission fails validation without a prompt
	InlineImage    bool // Raw image bytes can be submitted
	RemoteImage    bool // A remote image URL can be submitted
}

// Request is the provider-neutral submission payload.
// Exactly one of Image or ImageURL is set.
type Request struct {
	Prompt          string
	Image           []byte // Raw decoded image bytes
	ImageMIMEType   string // Declared content type of Image, e.g. "image/jpeg"
	ImageFilename   string // Filename sent with multipart uploads
	ImageURL        string // Remote image reference
	DurationSeconds int    // Requested clip length, 0 for provider default
}

// HasInlineImage reports whether the request carries image bytes.
func (r Request) HasInlineImage() bool {
	return len(r.Image) > 0
}

// Submission is the outcome of a successful submit call. A provider either
// accepts the job asynchronously (JobID set) or returns the finished asset
// right away (VideoURL set).
type Submission struct {
	JobID       string
	VideoURL    string
	ContentType string
}

// IsDirect returns true when the provider returned the final asset synchronously.
func (s Submission) IsDirect() bool {
	return s.VideoURL != ""
}

// Result contains the outcome of a single poll. When Status is StatusDone
// either Video (with ContentType) or VideoURL is set.
type Result struct {
	Status      Status
	Video       []byte // Raw video payload, forwarded unmodified
	ContentType string // Provider-declared content type of Video or VideoURL
	VideoURL    string // Remote location of the finished video
}

// Generator defines the interface for image-to-video providers.
// Each call performs exactly one upstream request. Provider failures are
// returned as *UpstreamError.
type Generator interface {
	// Name returns the provider name used in logs and error payloads.
	Name() string

	// Capabilities returns what the provider accepts on submission.
	Capabilities() Capabilities

	// Submit sends a generation request and returns a job handle or a direct asset.
	Submit(ctx context.Context, req Request) (Submission, error)

	// Poll checks a previously issued job handle.
	Poll(ctx context.Context, jobID string) (Result, error)
}
