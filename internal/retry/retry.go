// Package retry wraps a single oracle query with bounded retries.
//
// Language servers frequently answer "null" while they are still indexing a
// workspace, so a missing result is retried a couple of times before it is
// taken at face value. A nil slice is the empty sentinel; a non-nil empty slice
// is a definitive "nothing here" and is returned immediately.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxRetries = 2
	DefaultDelay      = 100 * time.Millisecond
)

// Options controls the retry policy.
type Options struct {
	// MaxRetries is the total number of attempts.
	MaxRetries int
	// Delay is the fixed pause between attempts.
	Delay  time.Duration
	Logger *zap.SugaredLogger
}

// DefaultOptions returns two attempts spaced 100ms apart.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, Delay: DefaultDelay}
}

// Do calls fn until it returns a non-nil result or MaxRetries attempts have
// been made. Errors are swallowed and count as a nil result for that attempt.
// Do never aborts an in-flight call; it only stops waiting between attempts
// once ctx is done.
func Do[T any](ctx context.Context, opts Options, fn func(context.Context) ([]T, error)) []T {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil && result != nil {
			return result
		}
		if err != nil {
			log.Debugw("oracle call failed", "attempt", attempt, "error", err)
		} else {
			log.Debugw("oracle call returned no result", "attempt", attempt)
		}

		if attempt == opts.MaxRetries {
			break
		}
		timer := time.NewTimer(opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	return nil
}
