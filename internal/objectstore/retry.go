package objectstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// retryDelays are the fixed backoff delays between the 3 retries that
// follow an initial attempt (4 attempts total).
var retryDelays = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
}

// withRetry runs op, retrying on error up to len(retryDelays) additional
// times with the fixed delays above. It is unconditional on error kind — a
// "not found" outcome from Get is retried exactly like a transport error;
// callers convert it to ErrNotFound only once retries are exhausted. The
// final failure surfaces the last underlying error.
func withRetry(ctx context.Context, log zerolog.Logger, op string, fn func() error) error {
	var lastErr error
	attempts := len(retryDelays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < len(retryDelays) {
			log.Warn().
				Str("op", op).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", retryDelays[attempt]).
				Err(lastErr).
				Msg("object store operation failed, retrying")
			select {
			case <-time.After(retryDelays[attempt]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
