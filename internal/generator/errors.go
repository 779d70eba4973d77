package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	// KindRejected means the provider answered with a non-success status.
	KindRejected ErrorKind = "rejected"
	// KindQuotaExhausted means the provider account is out of credits or quota.
	KindQuotaExhausted ErrorKind = "quota_exhausted"
	// KindUnreachable means the request never produced a provider response.
	KindUnreachable ErrorKind = "unreachable"
	// KindTimeout means the bounded upstream timeout elapsed.
	KindTimeout ErrorKind = "timeout"
	// KindMalformed means the provider response did not have the expected shape.
	KindMalformed ErrorKind = "malformed"
)

// ErrUnsupportedImage is returned when a request carries an image source the
// provider cannot accept.
var ErrUnsupportedImage = errors.New("generator: image source not supported by provider")

// UpstreamError describes a failed provider call. StatusCode, Body and
// ContentType hold the provider response verbatim when there was one.
type UpstreamError struct {
	Provider    string
	Kind        ErrorKind
	StatusCode  int
	Body        []byte
	ContentType string
	Err         error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: upstream %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AsUpstreamError extracts an *UpstreamError from err.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// transportError classifies an error that carried no provider response.
func transportError(provider string, err error) *UpstreamError {
	kind := KindUnreachable
	if isTimeout(err) {
		kind = KindTimeout
	}
	return &UpstreamError{Provider: provider, Kind: kind, Err: err}
}

func malformedError(provider string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Kind: KindMalformed, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// quotaPhrases is the free-text fallback used only when a provider response
// carries no structured quota signal.
var quotaPhrases = []string{
	"exhausted balance",
	"insufficient balance",
	"insufficient credits",
	"out of credits",
}

func mentionsQuota(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, phrase := range quotaPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
