package embedding

import (
	"context"
	"time"
)

// withRetry runs fn up to maxAttempts times, sleeping attempt*backoff
// between failures (linear backoff). The final error is returned
// unwrapped so the caller can annotate it.
func withRetry(ctx context.Context, maxAttempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return lastErr
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
