package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func TestRequestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})
	h := chiMiddleware.RequestID(RequestLogger(logger)(next))

	req := httptest.NewRequest(http.MethodPost, "/invoke", nil)
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", buf.String(), err)
	}

	if entry["msg"] != "http request" {
		t.Errorf("expected msg 'http request', got %v", entry["msg"])
	}
	if entry["method"] != http.MethodPost {
		t.Errorf("expected method POST, got %v", entry["method"])
	}
	if entry["path"] != "/invoke" {
		t.Errorf("expected path '/invoke', got %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("expected status %d, got %v", http.StatusTeapot, entry["status"])
	}
	if entry["bytes"] != float64(len("short and stout")) {
		t.Errorf("expected bytes %d, got %v", len("short and stout"), entry["bytes"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("expected request_id to be set")
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	recorder := httptest.NewRecorder()
	RequestLogger(logger)(next).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !called {
		t.Error("expected next handler to be called")
	}
	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", recorder.Code)
	}
}
