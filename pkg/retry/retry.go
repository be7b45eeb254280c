package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/aws/smithy-go"
)

const (
	// maxDelay caps the exponential backoff delay
	maxDelay = 8 * time.Second

	// maxJitter is the upper bound of the random jitter added to each delay
	maxJitter = 200 * time.Millisecond
)

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of additional attempts after the first one
	MaxRetries int

	// BaseDelay is the delay before the first retry; it doubles each attempt
	BaseDelay time.Duration

	// Classifier decides whether an error is worth retrying. Nil means
	// IsRetryable.
	Classifier func(error) bool
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
	}
}

// retryableCodes are the remote error codes treated as transient
var retryableCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"Throttling":                             {},
	"ProvisionedThroughputExceededException": {},
	"TooManyRequestsException":               {},
	"InternalServerError":                    {},
	"ServiceUnavailable":                     {},
	"ServiceUnavailableException":            {},
}

// IsRetryable reports whether err is a transient remote failure: throttling,
// throughput exceeded, too many requests, a 5xx-class service error, or an
// error the provider explicitly marks retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := retryableCodes[apiErr.ErrorCode()]; ok {
			return true
		}
	}

	var retryable interface{ RetryableError() bool }
	if errors.As(err, &retryable) {
		return retryable.RetryableError()
	}

	return false
}

// Backoff returns the delay before retry attempt i (0-indexed): the base delay
// doubled per attempt, capped at 8s, plus up to 200ms of jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	return delay + rand.N(maxJitter)
}

// Do executes fn up to MaxRetries+1 times, sleeping with exponential backoff
// between attempts. Non-retryable errors and exhaustion return the original
// error unwrapped.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	classify := cfg.Classifier
	if classify == nil {
		classify = IsRetryable
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if attempt >= cfg.MaxRetries || !classify(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(Backoff(cfg.BaseDelay, attempt)):
		}
	}
}

// DoWithLog executes fn with retry and calls logFn before each sleep
func DoWithLog(ctx context.Context, cfg Config, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	classify := cfg.Classifier
	if classify == nil {
		classify = IsRetryable
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if attempt >= cfg.MaxRetries || !classify(err) {
			return err
		}

		delay := Backoff(cfg.BaseDelay, attempt)
		if logFn != nil {
			logFn(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
