package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-vector/internal/config"
	"github.com/kozaktomas/face-vector/internal/logging"
)

// failingReader returns some bytes then an error.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset by peer")
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()

	artifact, err := writeArtifact(dir, bytes.NewReader([]byte("image-bytes")))
	if err != nil {
		t.Fatalf("writeArtifact failed: %v", err)
	}
	if filepath.Dir(artifact.Path) != dir {
		t.Errorf("artifact written outside temp dir: %s", artifact.Path)
	}
	if artifact.Size != int64(len("image-bytes")) {
		t.Errorf("unexpected size %d", artifact.Size)
	}

	data, err := artifact.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("unexpected contents %q", data)
	}
}

func TestWriteArtifact_StreamErrorRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()

	_, err := writeArtifact(dir, &failingReader{})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if files := listDir(t, dir); len(files) != 0 {
		t.Errorf("partial file left behind: %v", files)
	}
}

func TestWriteArtifact_BadTempDir(t *testing.T) {
	_, err := writeArtifact(filepath.Join(t.TempDir(), "missing"), bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected error for missing temp dir")
	}
	if errors.Is(err, ErrTransient) {
		t.Error("local temp dir failure is not a storage outage")
	}
}

func TestArtifactRelease_Idempotent(t *testing.T) {
	dir := t.TempDir()
	artifact, err := writeArtifact(dir, bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("writeArtifact failed: %v", err)
	}

	if err := artifact.Release(); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := artifact.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
	if _, err := os.Stat(artifact.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact still present after Release: %v", err)
	}
}

func TestNew_Backends(t *testing.T) {
	logger := logging.Discard()

	if _, err := New(context.Background(), &config.StorageConfig{Backend: "gcs"}, logger); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := New(context.Background(), &config.StorageConfig{Backend: config.BackendMinio}, logger); err == nil {
		t.Error("expected error for minio without endpoint")
	}

	f, err := New(context.Background(), &config.StorageConfig{
		Backend:    config.BackendMinio,
		Endpoint:   "localhost:9000",
		MaxRetries: 2,
	}, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := f.(*RetryingFetcher); !ok {
		t.Errorf("expected retrying fetcher when retries are enabled, got %T", f)
	}

	f, err = New(context.Background(), &config.StorageConfig{
		Backend:  config.BackendMinio,
		Endpoint: "localhost:9000",
	}, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := f.(*MinioFetcher); !ok {
		t.Errorf("expected bare minio fetcher without retries, got %T", f)
	}
}
