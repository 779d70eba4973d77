// Package storage stages inline image bytes at a URL so providers that only
// accept remote image references can fetch them. Staging goes to S3 with a
// presigned GET URL when a bucket is configured, or falls back to a data URI.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrEmptyImage is returned when there is nothing to stage.
var ErrEmptyImage = errors.New("storage: image data is empty")

// Stager defines the interface for staging image bytes at a fetchable URL.
type Stager interface {
	// Stage stores data and returns a URL the provider can read it from.
	// contentType is the declared MIME type of data, e.g. "image/png".
	Stage(ctx context.Context, data []byte, contentType string) (url string, err error)
}

// DataURIStager encodes images as data: URIs. It needs no storage but the
// resulting request body grows by a third of the image size.
type DataURIStager struct{}

// NewDataURIStager creates a new DataURIStager.
func NewDataURIStager() *DataURIStager {
	return &DataURIStager{}
}

// Stage returns data as a base64 data: URI.
func (DataURIStager) Stage(_ context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Compile-time checks that stagers implement Stager.
var (
	_ Stager = (*DataURIStager)(nil)
	_ Stager = (*S3Stager)(nil)
)
