package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kozaktomas/face-vector/internal/config"
)

// S3API is the subset of the S3 client the fetcher uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads objects with the AWS SDK.
type S3Fetcher struct {
	client  S3API
	tempDir string
}

// NewS3Fetcher creates a fetcher from the default AWS credential chain,
// or static keys and a custom endpoint when configured.
func NewS3Fetcher(ctx context.Context, cfg *config.StorageConfig) (*S3Fetcher, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.Secure))
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3FetcherWithClient(client, cfg.TempDir), nil
}

// NewS3FetcherWithClient creates a fetcher around an existing client.
func NewS3FetcherWithClient(client S3API, tempDir string) *S3Fetcher {
	return &S3Fetcher{client: client, tempDir: tempDir}
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) (*Artifact, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(bucket, key, err)
	}
	defer out.Body.Close()

	artifact, err := writeArtifact(f.tempDir, out.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", objectURL(bucket, key), err)
	}
	return artifact, nil
}

func endpointURL(endpoint string, secure bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if secure {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// classifyS3Error maps SDK errors onto ErrNotFound, ErrAccess or ErrTransient.
// Context errors pass through unclassified.
func classifyS3Error(bucket, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", objectURL(bucket, key), err)
	}

	kind := ErrTransient

	var (
		noSuchKey    *types.NoSuchKey
		noSuchBucket *types.NoSuchBucket
		notFound     *types.NotFound
		apiErr       smithy.APIError
		respErr      *awshttp.ResponseError
	)
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &noSuchBucket), errors.As(err, &notFound):
		kind = ErrNotFound
	case errors.As(err, &apiErr) && isNotFoundCode(apiErr.ErrorCode()):
		kind = ErrNotFound
	case errors.As(err, &apiErr) && isAccessCode(apiErr.ErrorCode()):
		kind = ErrAccess
	case errors.As(err, &respErr):
		switch respErr.HTTPStatusCode() {
		case 404:
			kind = ErrNotFound
		case 401, 403:
			kind = ErrAccess
		}
	}

	return fmt.Errorf("%w: %s: %w", kind, objectURL(bucket, key), err)
}

func isNotFoundCode(code string) bool {
	switch code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

func isAccessCode(code string) bool {
	switch code {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"ExpiredToken", "InvalidToken", "AllAccessDisabled", "AccountProblem":
		return true
	}
	return false
}
