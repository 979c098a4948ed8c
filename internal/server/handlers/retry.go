package handlers

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/contacttrace/internal/common"
)

const (
	maxRetries   = 3
	retryBackoff = 50 * time.Millisecond
)

// DefaultBackoff retries up to three times with exponential delays and jitter.
func DefaultBackoff() retry.Backoff {
	return retry.WithJitterPercent(10, retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBackoff)))
}

func retryOn(kinds ...common.Kind) func(error) bool {
	return func(err error) bool {
		k := common.KindOf(err)
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
}

var transient = retryOn(common.KindDependencyUnavailable)

// withRetry runs fn until it succeeds, fails with an error shouldRetry
// rejects, or b stops. The last error is returned as is.
func withRetry(ctx context.Context, b retry.Backoff, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && shouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
