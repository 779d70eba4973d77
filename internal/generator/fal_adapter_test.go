package generator

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/maauso/videobridge/internal/fal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const falTestModel = "fal-ai/kling-video/v1/standard/image-to-video"

type mockFALClient struct {
	mock.Mock
}

func (m *mockFALClient) Submit(ctx context.Context, model string, in fal.Input) (fal.Submission, error) {
	args := m.Called(ctx, model, in)
	return args.Get(0).(fal.Submission), args.Error(1)
}

func (m *mockFALClient) Poll(ctx context.Context, model, requestID string) (fal.PollResult, error) {
	args := m.Called(ctx, model, requestID)
	return args.Get(0).(fal.PollResult), args.Error(1)
}

type mockStager struct {
	mock.Mock
}

func (m *mockStager) Stage(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

func TestFALAdapter_Describe(t *testing.T) {
	adapter := NewFALAdapter(&mockFALClient{}, falTestModel, nil)

	assert.Equal(t, "fal", adapter.Name())
	assert.Equal(t, Capabilities{PromptRequired: true, InlineImage: true, RemoteImage: true}, adapter.Capabilities())
}

func TestFALAdapter_Submit_RemoteImage(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockFALClient{}
	stager := &mockStager{}
	adapter := NewFALAdapter(mockClient, falTestModel, stager)

	mockClient.On("Submit", ctx, falTestModel, fal.Input{
		Prompt:   "pan left",
		ImageURL: "https://img.example/cat.png",
		Duration: "5",
	}).Return(fal.Submission{RequestID: "req-1"}, nil)

	sub, err := adapter.Submit(ctx, Request{
		Prompt:          "pan left",
		ImageURL:        "https://img.example/cat.png",
		DurationSeconds: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, Submission{JobID: "req-1"}, sub)
	mockClient.AssertExpectations(t)
	stager.AssertNotCalled(t, "Stage", mock.Anything, mock.Anything, mock.Anything)
}

func TestFALAdapter_Submit_StagesInlineImage(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockFALClient{}
	stager := &mockStager{}
	adapter := NewFALAdapter(mockClient, falTestModel, stager)

	stager.On("Stage", ctx, []byte("png"), "image/png").Return("https://bucket.example/staging/abc.png", nil)
	mockClient.On("Submit", ctx, falTestModel, fal.Input{
		Prompt:   "pan left",
		ImageURL: "https://bucket.example/staging/abc.png",
	}).Return(fal.Submission{RequestID: "req-2"}, nil)

	sub, err := adapter.Submit(ctx, Request{Prompt: "pan left", Image: []byte("png"), ImageMIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "req-2", sub.JobID)
	stager.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestFALAdapter_Submit_StageFailure(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockFALClient{}
	stager := &mockStager{}
	adapter := NewFALAdapter(mockClient, falTestModel, stager)

	stager.On("Stage", ctx, mock.Anything, mock.Anything).Return("", errors.New("s3: access denied"))

	_, err := adapter.Submit(ctx, Request{Prompt: "p", Image: []byte("png"), ImageMIMEType: "image/png"})
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindUnreachable, ue.Kind)
	mockClient.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestFALAdapter_Submit_NoStager(t *testing.T) {
	adapter := NewFALAdapter(&mockFALClient{}, falTestModel, nil)

	_, err := adapter.Submit(context.Background(), Request{Prompt: "p", Image: []byte("png")})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestFALAdapter_Submit_Sync(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockFALClient{}
	adapter := NewFALAdapter(mockClient, falTestModel, nil)

	mockClient.On("Submit", ctx, falTestModel, mock.Anything).Return(fal.Submission{
		Video: &fal.File{URL: "https://cdn.example/out.mp4", ContentType: "video/mp4"},
	}, nil)

	sub, err := adapter.Submit(ctx, Request{Prompt: "p", ImageURL: "https://img"})
	require.NoError(t, err)
	assert.True(t, sub.IsDirect())
	assert.Equal(t, "https://cdn.example/out.mp4", sub.VideoURL)
	assert.Equal(t, "video/mp4", sub.ContentType)
	assert.Empty(t, sub.JobID)
}

func TestFALAdapter_Submit_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{"payment required", &fal.APIError{StatusCode: http.StatusPaymentRequired}, KindQuotaExhausted},
		{
			"exhausted balance",
			&fal.APIError{StatusCode: http.StatusForbidden, Detail: "User is locked. Reason: Exhausted balance.", Body: []byte(`{"detail":"User is locked. Reason: Exhausted balance."}`)},
			KindQuotaExhausted,
		},
		{"forbidden", &fal.APIError{StatusCode: http.StatusForbidden, Detail: "Invalid key", Body: []byte(`{"detail":"Invalid key"}`)}, KindRejected},
		{"unprocessable", &fal.APIError{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"detail":[{"msg":"bad"}]}`)}, KindRejected},
		{"malformed", fal.ErrMalformedResponse, KindMalformed},
		{"unreachable", errors.New("dial tcp: no such host"), KindUnreachable},
		{"timeout", context.DeadlineExceeded, KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockFALClient{}
			adapter := NewFALAdapter(mockClient, falTestModel, nil)
			mockClient.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(fal.Submission{}, tt.err)

			_, err := adapter.Submit(context.Background(), Request{Prompt: "p", ImageURL: "https://img"})

			ue, ok := AsUpstreamError(err)
			require.True(t, ok, "expected *UpstreamError, got %v", err)
			assert.Equal(t, tt.wantKind, ue.Kind)
		})
	}
}

func TestFALAdapter_Poll(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		result fal.PollResult
		want   Result
	}{
		{"in queue", fal.PollResult{Status: fal.StatusInQueue}, Result{Status: StatusProcessing}},
		{"in progress", fal.PollResult{Status: fal.StatusInProgress}, Result{Status: StatusProcessing}},
		{
			"completed",
			fal.PollResult{Status: fal.StatusCompleted, Video: &fal.File{URL: "https://cdn.example/out.mp4", ContentType: "video/mp4"}},
			Result{Status: StatusDone, VideoURL: "https://cdn.example/out.mp4", ContentType: "video/mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockFALClient{}
			adapter := NewFALAdapter(mockClient, falTestModel, nil)
			mockClient.On("Poll", ctx, falTestModel, "req-1").Return(tt.result, nil)

			result, err := adapter.Poll(ctx, "req-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
			mockClient.AssertNumberOfCalls(t, "Poll", 1)
		})
	}
}
