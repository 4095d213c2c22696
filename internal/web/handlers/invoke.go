package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-vector/internal/handler"
)

// maxEventSize bounds the request body; events only carry bucket and key.
const maxEventSize = 1 << 20

// Invoker runs one invocation from a raw event payload.
type Invoker interface {
	HandlePayload(ctx context.Context, payload []byte) handler.Response
}

// InvokeHandler exposes the invocation handler over HTTP.
type InvokeHandler struct {
	invoker Invoker
}

// NewInvokeHandler creates a new invoke handler
func NewInvokeHandler(invoker Invoker) *InvokeHandler {
	return &InvokeHandler{invoker: invoker}
}

// Invoke runs the request body as an event and writes the envelope. The HTTP
// status mirrors the envelope's statusCode, including for malformed events.
func (h *InvokeHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, errRequestTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, errReadRequestBody)
		return
	}

	ctx := r.Context()
	if id := chiMiddleware.GetReqID(ctx); id != "" {
		ctx = handler.WithRequestID(ctx, id)
	}

	resp := h.invoker.HandlePayload(ctx, payload)
	respondJSON(w, resp.StatusCode, resp)
}
