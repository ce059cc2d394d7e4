package llm

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// DefaultMaxAttempts bounds adapter-level retries.
const DefaultMaxAttempts = 3

// maxBackoff caps any single retry delay.
const maxBackoff = 30 * time.Second

// retryableFragments are matched case-insensitively against error text.
// Anything else fails immediately.
var retryableFragments = []string{
	"rate limit",
	"429",
	"500", "502", "503", "504",
	"connection",
	"timeout",
	"network",
	"temporary",
	"busy",
	"overload",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"too many requests",
}

// IsRetryableText reports whether an error message looks transient.
func IsRetryableText(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range retryableFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// backoffDelay computes the wait before attempt (0-based): base doubling
// with uniform jitter in [0.5, 1.5], capped at maxBackoff.
func backoffDelay(attempt int) time.Duration {
	base := time.Second * time.Duration(1<<uint(attempt))
	jitter := 0.5 + rand.Float64()
	d := time.Duration(float64(base) * jitter)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// retry runs f up to maxAttempts times, sleeping backoffDelay between
// attempts when the error is retryable. Shared by the chat clients, the
// embedding clients, and the vector store adapter.
func retry(ctx context.Context, maxAttempts int, isRetryable func(error) bool, f func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := f(); err != nil {
			lastErr = err
			if isRetryable != nil && !isRetryable(err) {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

// Retry is the exported form used by other packages that share the adapter's
// retry discipline.
func Retry(ctx context.Context, maxAttempts int, f func() error) error {
	return retry(ctx, maxAttempts, func(err error) bool {
		return IsRetryableText(err.Error())
	}, f)
}
