package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetryWithPolicy_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	got, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("503 service unavailable")
			}
			return "ok", nil
		}, ClassifyLLMError, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithPolicy_NonRetryableReturnsImmediately(t *testing.T) {
	attempts := 0
	_, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			attempts++
			return "", errors.New("401 unauthorized")
		}, ClassifyLLMError, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, IsRetryExhausted(err))
}

func TestRetryWithPolicy_Exhausted(t *testing.T) {
	var retries []int
	_, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (int, error) {
			return 0, errors.New("429 too many requests")
		}, ClassifyLLMError, func(attempt int, _ time.Duration, _ error) {
			retries = append(retries, attempt)
		})

	require.Error(t, err)
	assert.True(t, IsRetryExhausted(err))
	assert.Equal(t, []int{1, 2}, retries)
}

func TestClassifyLLMError_OwnDeadlineIsNotRetried(t *testing.T) {
	assert.Equal(t, RetryClassNonRetryable, ClassifyLLMError(context.DeadlineExceeded))
	assert.Equal(t, RetryClassRetryable, ClassifyLLMError(WrapLLMError(errors.New("boom"), 502, "")))
	assert.Equal(t, RetryClassNonRetryable, ClassifyLLMError(WrapLLMError(errors.New("boom"), 401, "")))
}
