package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const retryBaseInterval = time.Second

// BackoffRetry runs f up to maxAttempts times with exponentially
// growing intervals, stopping early when ctx is cancelled. Zero or
// negative maxAttempts still runs f once.
func BackoffRetry(ctx context.Context, maxAttempts int, f func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryBaseInterval

	bf := backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(maxAttempts-1)),
		ctx,
	)
	return backoff.Retry(f, bf)
}
