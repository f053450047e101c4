package providers

import (
	"context"
	"time"
)

// WithRetry runs fn up to attempts times, sleeping base, 2*base, 4*base...
// between tries. Only retryable failures (rate limits, transient network or
// 5xx errors) are repeated; permanent errors return immediately.
func WithRetry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !Retryable(err) || i == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
