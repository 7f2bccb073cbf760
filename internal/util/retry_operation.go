package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOperationIf retries the operation with a constant backoff for as long as
// retryable reports the returned error as temporary. Other errors are returned as-is.
func RetryOperationIf(ctx context.Context, wait time.Duration, retries int, retryable func(error) bool, operation func() error) error {
	if retries < 0 {
		retries = 0
	}
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(wait),
		uint64(retries),
	)
	return backoff.Retry(func() error {
		err := operation()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
