package bridge

import (
	"errors"
	"fmt"
)

// ValidationError reports a request the bridge refuses to forward.
type ValidationError struct {
	Field   string // JSON name of the offending field, if any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ConfigurationError reports that the bridge cannot reach any provider
// because it is not configured to.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is a *ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
