package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingFetcher retries transient fetch failures with exponential backoff.
// Not-found, access and local errors are returned on the first attempt.
type RetryingFetcher struct {
	next       Fetcher
	maxRetries int
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewRetryingFetcher wraps next with at most maxRetries extra attempts.
func NewRetryingFetcher(next Fetcher, maxRetries int, logger *slog.Logger) *RetryingFetcher {
	return &RetryingFetcher{
		next:       next,
		maxRetries: maxRetries,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// Fetch implements Fetcher.
func (r *RetryingFetcher) Fetch(ctx context.Context, bucket, key string) (*Artifact, error) {
	var artifact *Artifact
	op := func() error {
		a, err := r.next.Fetch(ctx, bucket, key)
		if err != nil {
			if errors.Is(err, ErrTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		artifact = a
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("retrying fetch", "bucket", bucket, "key", key, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return artifact, nil
}
