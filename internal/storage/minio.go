package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/face-vector/internal/config"
)

// MinioFetcher reads objects from an S3-compatible endpoint with minio-go.
type MinioFetcher struct {
	client  *minio.Client
	tempDir string
}

// NewMinioFetcher creates a fetcher for cfg.Endpoint.
func NewMinioFetcher(cfg *config.StorageConfig) (*MinioFetcher, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio backend requires an endpoint")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioFetcher{client: client, tempDir: cfg.TempDir}, nil
}

// Fetch implements Fetcher.
func (f *MinioFetcher) Fetch(ctx context.Context, bucket, key string) (*Artifact, error) {
	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(bucket, key, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing object or denied access.
	if _, err := obj.Stat(); err != nil {
		return nil, classifyMinioError(bucket, key, err)
	}

	artifact, err := writeArtifact(f.tempDir, obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", objectURL(bucket, key), err)
	}
	return artifact, nil
}

func classifyMinioError(bucket, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", objectURL(bucket, key), err)
	}

	kind := ErrTransient

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case isNotFoundCode(resp.Code), resp.StatusCode == http.StatusNotFound:
			kind = ErrNotFound
		case isAccessCode(resp.Code), resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
			kind = ErrAccess
		}
	}

	return fmt.Errorf("%w: %s: %w", kind, objectURL(bucket, key), err)
}
