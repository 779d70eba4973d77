package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videobridge/internal/config"
	"github.com/maauso/videobridge/internal/generator"
)

// pngBytes is the 8-byte PNG signature plus an IHDR chunk header, enough for sniffing.
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
}

// jpegBytes starts with the JPEG SOI and an APP0 JFIF marker.
var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

type mockGenerator struct {
	mock.Mock
	caps generator.Capabilities
}

func (m *mockGenerator) Name() string { return "stub" }

func (m *mockGenerator) Capabilities() generator.Capabilities { return m.caps }

func (m *mockGenerator) Submit(ctx context.Context, req generator.Request) (generator.Submission, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(generator.Submission), args.Error(1)
}

func (m *mockGenerator) Poll(ctx context.Context, jobID string) (generator.Result, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(generator.Result), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(gen *mockGenerator) *Service {
	return NewService("stub", gen, nil, WithLogger(discardLogger()), WithTimeout(time.Second))
}

func inlineCaps() generator.Capabilities {
	return generator.Capabilities{InlineImage: true}
}

func TestService_Submit_Async(t *testing.T) {
	gen := &mockGenerator{caps: inlineCaps()}
	svc := newTestService(gen)

	gen.On("Submit", mock.Anything, mock.MatchedBy(func(r generator.Request) bool {
		return r.Prompt == "pan left" &&
			r.ImageMIMEType == "image/jpeg" &&
			r.ImageFilename == "image.jpg" &&
			string(r.Image) == string(jpegBytes)
	})).Return(generator.Submission{JobID: "job-123"}, nil)

	out, err := svc.Submit(context.Background(), SubmitInput{
		Prompt:   "pan left",
		Image:    base64.StdEncoding.EncodeToString(jpegBytes),
		MIMEType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-123", out.JobID)
	assert.Equal(t, StatusSubmitted, out.Status)
	assert.Empty(t, out.VideoURL)
	gen.AssertExpectations(t)
}

func TestService_Submit_Direct(t *testing.T) {
	gen := &mockGenerator{caps: generator.Capabilities{RemoteImage: true, PromptRequired: true}}
	svc := newTestService(gen)

	gen.On("Submit", mock.Anything, generator.Request{
		Prompt:          "zoom in",
		ImageURL:        "https://img.example/cat.png",
		DurationSeconds: 5,
	}).Return(generator.Submission{VideoURL: "https://cdn.example/out.mp4", ContentType: "video/mp4"}, nil)

	out, err := svc.Submit(context.Background(), SubmitInput{
		Prompt:   "zoom in",
		ImageURL: "https://img.example/cat.png",
		Duration: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/out.mp4", out.VideoURL)
	assert.Equal(t, "video/mp4", out.ContentType)
	assert.Empty(t, out.JobID)
	assert.Empty(t, out.Status)
}

func TestService_Submit_BoundedContext(t *testing.T) {
	gen := &mockGenerator{caps: inlineCaps()}
	svc := newTestService(gen)

	gen.On("Submit", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Second
	}), mock.Anything).Return(generator.Submission{JobID: "job-1"}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{Image: base64.StdEncoding.EncodeToString(pngBytes)})
	require.NoError(t, err)
	gen.AssertExpectations(t)
}

func TestService_Submit_Malformed(t *testing.T) {
	gen := &mockGenerator{caps: inlineCaps()}
	svc := newTestService(gen)
	gen.On("Submit", mock.Anything, mock.Anything).Return(generator.Submission{}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{Image: base64.StdEncoding.EncodeToString(pngBytes)})

	ue, ok := generator.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, generator.KindMalformed, ue.Kind)
}

func TestService_Submit_UpstreamErrorPassthrough(t *testing.T) {
	gen := &mockGenerator{caps: inlineCaps()}
	svc := newTestService(gen)
	upstream := &generator.UpstreamError{Provider: "stub", Kind: generator.KindRejected, StatusCode: 400, Body: []byte(`{"errors":["bad"]}`)}
	gen.On("Submit", mock.Anything, mock.Anything).Return(generator.Submission{}, upstream)

	_, err := svc.Submit(context.Background(), SubmitInput{Image: base64.StdEncoding.EncodeToString(pngBytes)})
	assert.Same(t, upstream, err)
	gen.AssertNumberOfCalls(t, "Submit", 1)
}

func TestService_Submit_MissingCredential(t *testing.T) {
	svc := NewService("fal", nil, config.ErrProviderCredentialMissing, WithLogger(discardLogger()))

	tests := []struct {
		name string
		in   SubmitInput
	}{
		{"valid body", SubmitInput{Prompt: "p", ImageURL: "https://img"}},
		{"empty body", SubmitInput{}},
		{"invalid body", SubmitInput{Image: "!!!", ImageURL: "ftp://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, IsConfiguration(err))
			assert.ErrorIs(t, err, config.ErrProviderCredentialMissing)
		})
	}
	assert.False(t, svc.Configured())
	assert.Equal(t, "fal", svc.Provider())
}

func TestService_Submit_Validation(t *testing.T) {
	png64 := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name  string
		caps  generator.Capabilities
		in    SubmitInput
		field string
	}{
		{"no image", generator.Capabilities{InlineImage: true, RemoteImage: true}, SubmitInput{Prompt: "p"}, "image"},
		{"both images", generator.Capabilities{InlineImage: true, RemoteImage: true}, SubmitInput{Prompt: "p", Image: png64, ImageURL: "https://img"}, "image"},
		{"non http url", generator.Capabilities{RemoteImage: true}, SubmitInput{ImageURL: "ftp://img.example/a.png"}, "imageUrl"},
		{"duration too long", inlineCaps(), SubmitInput{Image: png64, Duration: 31}, "duration"},
		{"negative duration", inlineCaps(), SubmitInput{Image: png64, Duration: -1}, "duration"},
		{"prompt required", generator.Capabilities{InlineImage: true, PromptRequired: true}, SubmitInput{Prompt: "   ", Image: png64}, "prompt"},
		{"remote not supported", inlineCaps(), SubmitInput{ImageURL: "https://img"}, "imageUrl"},
		{"inline not supported", generator.Capabilities{RemoteImage: true}, SubmitInput{Image: png64}, "image"},
		{"invalid base64", inlineCaps(), SubmitInput{Image: "not base64!!"}, "image"},
		{"not an image", inlineCaps(), SubmitInput{Image: base64.StdEncoding.EncodeToString([]byte("plain text")), MIMEType: "text/plain"}, "mimeType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{caps: tt.caps}
			svc := newTestService(gen)

			_, err := svc.Submit(context.Background(), tt.in)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			gen.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Submit_MultipartBytes(t *testing.T) {
	gen := &mockGenerator{caps: inlineCaps()}
	svc := newTestService(gen)

	gen.On("Submit", mock.Anything, mock.MatchedBy(func(r generator.Request) bool {
		return r.ImageMIMEType == "image/png" && r.ImageFilename == "image.png"
	})).Return(generator.Submission{JobID: "job-9"}, nil)

	out, err := svc.Submit(context.Background(), SubmitInput{ImageData: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, "job-9", out.JobID)
}

func TestService_Poll(t *testing.T) {
	ctx := context.Background()

	t.Run("processing", func(t *testing.T) {
		gen := &mockGenerator{caps: inlineCaps()}
		svc := newTestService(gen)
		gen.On("Poll", mock.Anything, "job-123").Return(generator.Result{Status: generator.StatusProcessing}, nil)

		result, err := svc.Poll(ctx, "job-123")
		require.NoError(t, err)
		assert.Equal(t, generator.StatusProcessing, result.Status)
		assert.Nil(t, result.Video)
		gen.AssertNumberOfCalls(t, "Poll", 1)
	})

	t.Run("done with bytes", func(t *testing.T) {
		gen := &mockGenerator{caps: inlineCaps()}
		svc := newTestService(gen)
		gen.On("Poll", mock.Anything, "job-123").Return(generator.Result{
			Status: generator.StatusDone, Video: []byte("mp4"), ContentType: "video/mp4",
		}, nil)

		result, err := svc.Poll(ctx, "job-123")
		require.NoError(t, err)
		assert.Equal(t, []byte("mp4"), result.Video)
		assert.Equal(t, "video/mp4", result.ContentType)
	})

	t.Run("done without video", func(t *testing.T) {
		gen := &mockGenerator{caps: inlineCaps()}
		svc := newTestService(gen)
		gen.On("Poll", mock.Anything, "job-123").Return(generator.Result{Status: generator.StatusDone}, nil)

		_, err := svc.Poll(ctx, "job-123")
		ue, ok := generator.AsUpstreamError(err)
		require.True(t, ok)
		assert.Equal(t, generator.KindMalformed, ue.Kind)
	})

	t.Run("rejected", func(t *testing.T) {
		gen := &mockGenerator{caps: inlineCaps()}
		svc := newTestService(gen)
		upstream := &generator.UpstreamError{Kind: generator.KindRejected, StatusCode: 404, Body: []byte(`{"name":"not_found"}`)}
		gen.On("Poll", mock.Anything, "unknown").Return(generator.Result{}, upstream)

		_, err := svc.Poll(ctx, "unknown")
		assert.Same(t, upstream, err)
	})

	t.Run("quota keeps provider status", func(t *testing.T) {
		gen := &mockGenerator{caps: inlineCaps()}
		svc := newTestService(gen)
		upstream := &generator.UpstreamError{
			Provider: "stub", Kind: generator.KindQuotaExhausted, StatusCode: 429,
			Body: []byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`),
		}
		gen.On("Poll", mock.Anything, "op-1").Return(generator.Result{}, upstream)

		_, err := svc.Poll(ctx, "op-1")
		ue, ok := generator.AsUpstreamError(err)
		require.True(t, ok)
		assert.Equal(t, generator.KindRejected, ue.Kind)
		assert.Equal(t, 429, ue.StatusCode)
		assert.Equal(t, upstream.Body, ue.Body)
		assert.Equal(t, generator.KindQuotaExhausted, upstream.Kind, "original error must not be mutated")
	})

	t.Run("empty id", func(t *testing.T) {
		gen := &mockGenerator{caps: inlineCaps()}
		svc := newTestService(gen)

		_, err := svc.Poll(ctx, "  ")
		assert.True(t, IsValidation(err))
		gen.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything)
	})

	t.Run("missing credential", func(t *testing.T) {
		svc := NewService("gemini", nil, config.ErrProviderCredentialMissing, WithLogger(discardLogger()))

		_, err := svc.Poll(ctx, "job-1")
		assert.True(t, IsConfiguration(err))
	})
}

func TestNewService_NilGeneratorWithoutReason(t *testing.T) {
	svc := NewService("stability", nil, nil, WithLogger(discardLogger()))

	assert.False(t, svc.Configured())
	_, err := svc.Submit(context.Background(), SubmitInput{})
	assert.True(t, IsConfiguration(err))
}
