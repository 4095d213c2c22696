// Package handler runs the fetch, decode, locate and embed pipeline for one
// invocation and turns its outcome into a Response.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-vector/internal/embedding"
	"github.com/kozaktomas/face-vector/internal/face"
	"github.com/kozaktomas/face-vector/internal/imaging"
	"github.com/kozaktomas/face-vector/internal/storage"
)

// ErrValidation is returned when bucket or key is missing.
var ErrValidation = errors.New("missing bucket name or image key")

// Client-facing messages for the 400 cases.
const (
	msgMissingInput = "Missing bucket name or image key."
	msgInvalidEvent = "Invalid event payload."
	msgDecode       = "Unable to load image."
	msgNoFace       = "No face found in the image."
	msgNoVector     = "Unable to extract face vector."
)

// Stage names a pipeline step.
type Stage string

const (
	StageValidate Stage = "validate"
	StageFetch    Stage = "fetch"
	StageDecode   Stage = "decode"
	StageLocate   Stage = "locate_face"
	StageExtract  Stage = "extract_embedding"
)

// StageError records which stage failed. Its message is the underlying
// error's, so a 500 body carries exactly what went wrong.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

type requestIDKey struct{}

// WithRequestID attaches a request ID for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}

// Handler composes the pipeline. Its collaborators are built once per
// process and shared between invocations.
type Handler struct {
	fetcher   storage.Fetcher
	locator   *face.Locator
	extractor embedding.Extractor
	logger    *slog.Logger
}

// New creates a Handler.
func New(fetcher storage.Fetcher, detector face.Detector, extractor embedding.Extractor, logger *slog.Logger) *Handler {
	return &Handler{
		fetcher:   fetcher,
		locator:   face.NewLocator(detector),
		extractor: extractor,
		logger:    logger,
	}
}

// HandleLambda adapts the handler to the Lambda runtime. It takes the raw
// payload so a malformed event still gets an envelope, and it never returns
// an error: every failure is already in the envelope.
func (h *Handler) HandleLambda(ctx context.Context, payload json.RawMessage) (Response, error) {
	return h.HandlePayload(ctx, payload), nil
}

// HandlePayload decodes a raw event and processes it.
func (h *Handler) HandlePayload(ctx context.Context, payload []byte) Response {
	event, err := DecodeEvent(payload)
	if err != nil {
		resp := respond(nil, &StageError{Stage: StageValidate, Err: err})
		h.logger.Warn("invocation rejected",
			"request_id", requestID(ctx),
			"stage", StageValidate,
			"status", resp.StatusCode,
			"error", err,
		)
		return resp
	}
	return h.Handle(ctx, event)
}

// Handle processes one event.
func (h *Handler) Handle(ctx context.Context, event Event) (resp Response) {
	bucket, key := event.Target()
	logger := h.logger.With("request_id", requestID(ctx), "bucket", bucket, "key", key)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "panic", r)
			resp = failure(http.StatusInternalServerError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	vector, err := h.run(ctx, logger, bucket, key)
	resp = respond(vector, err)

	attrs := []any{"status", resp.StatusCode, "duration", time.Since(start)}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		attrs = append(attrs, "stage", stageErr.Stage)
	}
	switch {
	case err == nil:
		logger.Info("embedding extracted", append(attrs, "dim", len(vector))...)
	case resp.StatusCode >= 500:
		logger.Error("invocation failed", append(attrs, "error", err)...)
	default:
		logger.Warn("invocation rejected", append(attrs, "error", err)...)
	}
	return resp
}

func (h *Handler) run(ctx context.Context, logger *slog.Logger, bucket, key string) ([]float64, error) {
	if bucket == "" || key == "" {
		return nil, &StageError{Stage: StageValidate, Err: ErrValidation}
	}

	artifact, err := h.fetcher.Fetch(ctx, bucket, key)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			logger.Warn("failed to release artifact", "path", artifact.Path, "error", err)
		}
	}()
	logger.Debug("object fetched", "bytes", artifact.Size)

	data, err := artifact.ReadAll()
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, &StageError{Stage: StageDecode, Err: err}
	}
	logger.Debug("image decoded", "width", img.Width, "height", img.Height)

	detection, err := h.locator.Locate(ctx, img)
	if err != nil {
		return nil, &StageError{Stage: StageLocate, Err: err}
	}
	logger.Debug("face located",
		"region", detection.Region.String(),
		"relative", detection.Region.ToRelative(img.Width, img.Height),
		"area", detection.Region.Area(),
		"candidates", detection.Candidates,
	)

	vector, err := h.extractor.Extract(ctx, detection.Face)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	return vector, nil
}

// respond maps a pipeline outcome to the envelope.
func respond(vector []float64, err error) Response {
	switch {
	case err == nil:
		return success(vector)
	case errors.Is(err, ErrValidation):
		return failure(http.StatusBadRequest, msgMissingInput)
	case errors.Is(err, ErrInvalidEvent):
		return failure(http.StatusBadRequest, msgInvalidEvent)
	case errors.Is(err, imaging.ErrDecode):
		return failure(http.StatusBadRequest, msgDecode)
	case errors.Is(err, face.ErrNoFace):
		return failure(http.StatusBadRequest, msgNoFace)
	case errors.Is(err, embedding.ErrNoEmbedding):
		return failure(http.StatusBadRequest, msgNoVector)
	default:
		return failure(http.StatusInternalServerError, err.Error())
	}
}
