package resilience

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Policy bundles the timeout, retry and breaker settings for one target.
type Policy struct {
	Name     string
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
	Breaker  *Breaker
}

// Call performs a single attempt. ctx carries the per-attempt deadline.
type Call[T any] func(ctx context.Context) (T, error)

// Execute runs call under the policy. The returned error is always a *Failure.
//
// Transient failures are retried up to Attempts times with a fixed backoff.
// Malformed answers and non-retryable statuses stop immediately. No attempt is
// made while the breaker is open, and a cancelled parent context is never
// counted against the breaker.
func Execute[T any](ctx context.Context, p Policy, call Call[T]) (T, error) {
	var zero T
	log := zerolog.Ctx(ctx)

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last *Failure
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &Failure{Kind: KindCanceled, Err: err}
		}

		permit, err := p.Breaker.Acquire()
		if err != nil {
			log.Debug().Str("target", p.Name).Int("attempt", attempt).Msg("circuit open, skipping call")
			return zero, &Failure{Kind: KindCircuitOpen, Err: err}
		}

		attemptCtx, cancel := withOptionalTimeout(ctx, p.Timeout)
		result, err := call(attemptCtx)
		cancel()

		if err == nil {
			p.Breaker.Success(permit)
			return result, nil
		}

		if ctx.Err() != nil {
			p.Breaker.Release(permit)
			return zero, &Failure{Kind: KindCanceled, Err: ctx.Err()}
		}

		last = Classify(err)
		p.Breaker.Failure(permit)

		log.Warn().
			Err(err).
			Str("target", p.Name).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("kind", last.Kind.String()).
			Msg("upstream attempt failed")

		if !last.Retryable || attempt == attempts {
			break
		}

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, &Failure{Kind: KindCanceled, Err: ctx.Err()}
			case <-timer.C:
			}
		}
	}

	return zero, last
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
