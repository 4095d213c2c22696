//go:build integration

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-vector/internal/config"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "faces"
)

func setupMinioContainer(t *testing.T) (*config.StorageConfig, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     testAccessKey,
			"MINIO_ROOT_PASSWORD": testSecretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.StorageConfig{
		Backend:   config.BackendMinio,
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Region:    "us-east-1",
		TempDir:   t.TempDir(),
	}

	return cfg, func() { container.Terminate(ctx) }
}

func seedObject(t *testing.T, cfg *config.StorageConfig, key string, data []byte) {
	t.Helper()
	ctx := context.Background()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds: miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
	})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	if err := client.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		exists, existsErr := client.BucketExists(ctx, testBucket)
		if existsErr != nil || !exists {
			t.Fatalf("make bucket: %v", err)
		}
	}
	if _, err := client.PutObject(ctx, testBucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{}); err != nil {
		t.Fatalf("put object: %v", err)
	}
}

func TestMinioFetcher(t *testing.T) {
	cfg, cleanup := setupMinioContainer(t)
	if cfg == nil {
		return
	}
	defer cleanup()

	seedObject(t, cfg, "people/alice.jpg", []byte("not really a jpeg"))

	f, err := NewMinioFetcher(cfg)
	if err != nil {
		t.Fatalf("NewMinioFetcher failed: %v", err)
	}

	t.Run("existing object", func(t *testing.T) {
		artifact, err := f.Fetch(context.Background(), testBucket, "people/alice.jpg")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		defer artifact.Release()

		data, err := artifact.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if string(data) != "not really a jpeg" {
			t.Errorf("unexpected contents %q", data)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), testBucket, "people/nobody.jpg")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "no-such-bucket", "a.jpg")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		bad := *cfg
		bad.SecretKey = "wrong-secret"
		badFetcher, err := NewMinioFetcher(&bad)
		if err != nil {
			t.Fatalf("NewMinioFetcher failed: %v", err)
		}
		_, err = badFetcher.Fetch(context.Background(), testBucket, "people/alice.jpg")
		if !errors.Is(err, ErrAccess) {
			t.Errorf("expected ErrAccess, got %v", err)
		}
	})

	t.Run("s3 backend against same endpoint", func(t *testing.T) {
		s3cfg := *cfg
		s3cfg.Backend = config.BackendS3
		s3cfg.Secure = false
		s3cfg.UsePathStyle = true
		s3f, err := NewS3Fetcher(context.Background(), &s3cfg)
		if err != nil {
			t.Fatalf("NewS3Fetcher failed: %v", err)
		}
		artifact, err := s3f.Fetch(context.Background(), testBucket, "people/alice.jpg")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		defer artifact.Release()
		if artifact.Size != int64(len("not really a jpeg")) {
			t.Errorf("unexpected size %d", artifact.Size)
		}
	})
}
