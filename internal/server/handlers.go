package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maauso/videobridge/internal/bridge"
	"github.com/maauso/videobridge/internal/generator"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// VideoBridge is the subset of the bridge service used by the handlers.
type VideoBridge interface {
	Provider() string
	Configured() bool
	Submit(ctx context.Context, in bridge.SubmitInput) (bridge.SubmitOutput, error)
	Poll(ctx context.Context, jobID string) (generator.Result, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	bridge       VideoBridge
	logger       *slog.Logger
	maxBodyBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxBodyBytes sets the request body limit for submissions.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(b VideoBridge, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		bridge:       b,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Provider:   h.bridge.Provider(),
		Configured: h.bridge.Configured(),
	})
}

// GenerateVideo handles POST /api/generate-video requests. The body is
// either JSON or multipart/form-data with the image as a file part.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var (
		in  bridge.SubmitInput
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		in, err = h.decodeMultipart(r)
	} else {
		in, err = decodeJSON(r)
	}
	if err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	out, err := h.bridge.Submit(r.Context(), in)
	if err != nil {
		h.writeBridgeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateVideoResponse{
		JobID:       out.JobID,
		Status:      out.Status,
		VideoURL:    out.VideoURL,
		ContentType: out.ContentType,
	})
}

// VideoResult handles GET /api/video-result/{id...} requests.
func (h *Handlers) VideoResult(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when it is set, leaving the wildcard escaped.
	jobID := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(jobID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "job id is not a valid path segment", CodeValidation)
			return
		}
		jobID = unescaped
	}

	result, err := h.bridge.Poll(r.Context(), jobID)
	if err != nil {
		h.writeBridgeError(w, r, err)
		return
	}

	switch {
	case !result.Status.IsTerminal():
		writeJSON(w, http.StatusAccepted, VideoResultResponse{Status: string(generator.StatusProcessing)})
	case result.Status == generator.StatusFailed:
		writeError(w, http.StatusBadGateway, "generation failed", CodeUpstreamRejected)
	case len(result.Video) > 0:
		writeVideo(w, result)
	default:
		writeJSON(w, http.StatusOK, VideoResultResponse{
			Status:      string(generator.StatusDone),
			VideoURL:    result.VideoURL,
			ContentType: result.ContentType,
		})
	}
}

// NotFound returns a JSON 404 for unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "route not found", CodeNotFound)
}

// MethodNotAllowed returns a JSON 405 for known routes with the wrong method.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", CodeMethodNotAllowed)
}

var (
	errInvalidJSON = errors.New("invalid JSON body")
	errBadForm     = errors.New("invalid multipart form")
	errBadDuration = errors.New("duration must be an integer")
)

func decodeJSON(r *http.Request) (bridge.SubmitInput, error) {
	var req GenerateVideoRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return bridge.SubmitInput{}, err
		}
		return bridge.SubmitInput{}, errors.Join(errInvalidJSON, err)
	}

	return bridge.SubmitInput{
		Prompt:   req.Prompt,
		Image:    req.Image,
		ImageURL: req.ImageURL,
		MIMEType: req.MIMEType,
		Duration: req.Duration,
		UserID:   req.UserID,
	}, nil
}

func (h *Handlers) decodeMultipart(r *http.Request) (bridge.SubmitInput, error) {
	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return bridge.SubmitInput{}, err
		}
		return bridge.SubmitInput{}, errors.Join(errBadForm, err)
	}

	in := bridge.SubmitInput{
		Prompt:   r.FormValue("prompt"),
		Image:    r.FormValue("image"),
		ImageURL: r.FormValue("imageUrl"),
		MIMEType: r.FormValue("mimeType"),
		UserID:   r.FormValue("userId"),
	}

	if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return bridge.SubmitInput{}, errBadDuration
		}
		in.Duration = d
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return bridge.SubmitInput{}, errors.Join(errBadForm, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return bridge.SubmitInput{}, errors.Join(errBadForm, err)
	}
	in.ImageData = data
	in.Image = ""
	if in.MIMEType == "" {
		if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
			in.MIMEType = ct
		}
	}
	return in, nil
}

func (h *Handlers) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("failed to decode request body",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge,
			"request body exceeds "+strconv.FormatInt(maxErr.Limit, 10)+" bytes", CodePayloadTooLarge)
	case errors.Is(err, errBadDuration):
		writeError(w, http.StatusBadRequest, "duration: "+errBadDuration.Error(), CodeValidation)
	case errors.Is(err, errBadForm):
		writeError(w, http.StatusBadRequest, errBadForm.Error(), CodeValidation)
	default:
		writeError(w, http.StatusBadRequest, errInvalidJSON.Error(), CodeInvalidJSON)
	}
}

// writeBridgeError maps bridge and upstream errors to HTTP responses.
func (h *Handlers) writeBridgeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("code", resp.Code),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, resp)
}

// errorResponse classifies err into a status code and error body.
func errorResponse(err error) (int, ErrorResponse) {
	var verr *bridge.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: CodeValidation}
	}

	var cerr *bridge.ConfigurationError
	if errors.As(err, &cerr) {
		return http.StatusInternalServerError, ErrorResponse{Error: cerr.Error(), Code: CodeConfiguration}
	}

	ue, ok := generator.AsUpstreamError(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternal}
	}

	resp := ErrorResponse{Error: ue.Error(), Details: details(ue.Body)}
	switch ue.Kind {
	case generator.KindRejected:
		resp.Code = CodeUpstreamRejected
		status := ue.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, resp
	case generator.KindQuotaExhausted:
		resp.Code = CodeQuotaExhausted
		return http.StatusPaymentRequired, resp
	case generator.KindTimeout:
		resp.Code = CodeUpstreamTimeout
	case generator.KindMalformed:
		resp.Code = CodeMalformedUpstream
	default:
		resp.Code = CodeUpstreamUnreach
	}
	return http.StatusInternalServerError, resp
}

// details embeds a provider error body, as JSON when it parses.
func details(body []byte) any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return trimmed
}

func writeVideo(w http.ResponseWriter, result generator.Result) {
	contentType := result.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Video)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Video); err != nil {
		slog.Error("failed to write video response", slog.String("error", err.Error()))
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
