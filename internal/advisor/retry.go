package advisor

import (
	"context"
	"time"
)

// sleepBackoff waits the exponential backoff duration for attempt, or
// returns early if ctx is cancelled first.
func sleepBackoff(ctx context.Context, attempt int) error {
	select {
	case <-time.After(backoffFor(attempt)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
