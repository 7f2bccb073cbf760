package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func always(error) bool { return true }

func TestRetryOperation(t *testing.T) {
	temporaryErr := errors.New("temporary error")

	calls := 0
	err := RetryOperationIf(context.Background(), time.Millisecond, 3, always, func() error {
		calls++
		if calls < 3 {
			return temporaryErr
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryOperationIf(context.Background(), time.Millisecond, 2, always, func() error {
		calls++
		return temporaryErr
	})
	assert.ErrorIs(t, err, temporaryErr)
	assert.Equal(t, 3, calls)
}

func TestRetryOperationIf(t *testing.T) {
	temporaryErr := errors.New("temporary error")
	permanentErr := errors.New("permanent error")
	retryable := func(err error) bool { return errors.Is(err, temporaryErr) }

	calls := 0
	err := RetryOperationIf(context.Background(), time.Millisecond, 5, retryable, func() error {
		calls++
		return permanentErr
	})
	assert.ErrorIs(t, err, permanentErr)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryOperationIf(context.Background(), time.Millisecond, 0, retryable, func() error {
		calls++
		return temporaryErr
	})
	assert.ErrorIs(t, err, temporaryErr)
	assert.Equal(t, 1, calls)
}

func TestRetryOperationContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()
	err := RetryOperationIf(ctx, 10*time.Millisecond, 1000, always, func() error {
		return errors.New("temporary error")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
