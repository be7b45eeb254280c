package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func throttled() error {
	return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
}

func TestDo_RetriesThrottlingUntilSuccess(t *testing.T) {
	calls := 0
	fn := func() error {
		calls++
		if calls <= 3 {
			return throttled()
		}
		return nil
	}

	err := Do(context.Background(), Config{MaxRetries: 5, BaseDelay: time.Millisecond}, fn)

	require.NoError(t, err)
	assert.Equal(t, 4, calls, "three failures plus the successful attempt")
}

func TestDo_DoesNotRetryNonRetryable(t *testing.T) {
	calls := 0
	original := errors.New("invalid pdf")
	fn := func() error {
		calls++
		return original
	}

	err := Do(context.Background(), Config{MaxRetries: 5, BaseDelay: time.Millisecond}, fn)

	assert.Equal(t, 1, calls)
	assert.Same(t, original, err, "original error must be surfaced unmodified")
}

func TestDo_ExhaustionReturnsOriginalError(t *testing.T) {
	calls := 0
	fn := func() error {
		calls++
		return throttled()
	}

	err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, fn)

	assert.Equal(t, 3, calls)
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ThrottlingException", apiErr.ErrorCode())
}

func TestDo_CustomClassifierRetriesEverything(t *testing.T) {
	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	cfg := Config{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		Classifier: func(error) bool { return true },
	}

	require.NoError(t, Do(context.Background(), cfg, fn))
	assert.Equal(t, 3, calls)
}

func TestBackoff_MonotonicAndBounded(t *testing.T) {
	base := 100 * time.Millisecond

	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(base, attempt)

		floor := base << attempt
		if floor > maxDelay {
			floor = maxDelay
		}

		assert.GreaterOrEqual(t, d, floor, "attempt %d below pre-jitter floor", attempt)
		assert.LessOrEqual(t, d, maxDelay+maxJitter, "attempt %d above cap", attempt)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"throttling", &smithy.GenericAPIError{Code: "ThrottlingException"}, true},
		{"throughput", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, true},
		{"too many requests", &smithy.GenericAPIError{Code: "TooManyRequestsException"}, true},
		{"internal", &smithy.GenericAPIError{Code: "InternalServerError"}, true},
		{"unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailable"}, true},
		{"validation", &smithy.GenericAPIError{Code: "InvalidParameterException"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestDo_ContextCancelledReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Config{MaxRetries: 5, BaseDelay: time.Second}, func() error {
		calls++
		return throttled()
	})

	assert.Equal(t, 1, calls)
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
}
