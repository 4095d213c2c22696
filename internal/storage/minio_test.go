package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestClassifyMinioError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, ErrNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, ErrNotFound},
		{"bare 404", minio.ErrorResponse{StatusCode: http.StatusNotFound}, ErrNotFound},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, ErrAccess},
		{"bad key id", minio.ErrorResponse{Code: "InvalidAccessKeyId", StatusCode: http.StatusForbidden}, ErrAccess},
		{"server error", minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, ErrTransient},
		{"network", errors.New("connection refused"), ErrTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyMinioError("photos", "a.jpg", tc.err)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClassifyMinioError_Context(t *testing.T) {
	err := classifyMinioError("photos", "a.jpg", context.Canceled)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTransient) {
		t.Errorf("expected unclassified cancellation, got %v", err)
	}
}
