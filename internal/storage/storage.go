// Package storage fetches objects from S3-compatible blob storage into
// scoped temporary files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/kozaktomas/face-vector/internal/config"
)

// Fetch failure classes. Backends wrap the SDK error with one of these so
// callers can use errors.Is while the original message is kept.
var (
	ErrNotFound  = errors.New("object not found")
	ErrAccess    = errors.New("access denied")
	ErrTransient = errors.New("storage unavailable")
)

// Fetcher downloads one object into a temporary artifact.
// The caller owns the artifact and must Release it.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) (*Artifact, error)
}

// Artifact is a fetched object stored in a temporary file.
type Artifact struct {
	Path string
	Size int64

	once sync.Once
	err  error
}

// ReadAll returns the artifact contents.
func (a *Artifact) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Release deletes the temporary file. It is safe to call more than once.
func (a *Artifact) Release() error {
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.err = fmt.Errorf("failed to remove artifact: %w", err)
		}
	})
	return a.err
}

// writeArtifact streams r into a new temp file under dir. On failure the
// partial file is removed. A read error from r is reported as transient
// since it comes from the network stream.
func writeArtifact(dir string, r io.Reader) (*Artifact, error) {
	f, err := os.CreateTemp(dir, "face-vector-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(f.Name())
		if copyErr != nil {
			return nil, fmt.Errorf("%w: failed to download object: %w", ErrTransient, copyErr)
		}
		return nil, fmt.Errorf("failed to write temp file: %w", closeErr)
	}

	return &Artifact{Path: f.Name(), Size: n}, nil
}

func objectURL(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// New builds the fetcher for the configured backend, with retries when enabled.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Fetcher, error) {
	var (
		fetcher Fetcher
		err     error
	)
	switch cfg.Backend {
	case config.BackendS3, "":
		fetcher, err = NewS3Fetcher(ctx, cfg)
	case config.BackendMinio:
		fetcher, err = NewMinioFetcher(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		fetcher = NewRetryingFetcher(fetcher, cfg.MaxRetries, logger)
	}
	return fetcher, nil
}
