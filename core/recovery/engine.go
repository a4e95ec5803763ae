package recovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/leofalp/promptfan/providers/ai"
)

// Default tuning. MaxAttempts counts calls, not retries: 3 means one original
// call plus at most two retries for the rate-limit and server-error
// categories.
const (
	DefaultMaxAttempts = 3

	rateLimitInitialBackoff = 2 * time.Second
	serverInitialBackoff    = 500 * time.Millisecond
	slowDownDelay           = 2 * time.Second
	maxBackoff              = 30 * time.Second
	backoffFactor           = 2.0
	jitterFraction          = 0.1
)

// StatusFunc receives a human-readable progress line before each retry.
type StatusFunc func(message string)

// Engine retries one operation according to the per-category policy:
// rate limits honor the provider's retry-after hint else exponential backoff;
// server errors use a shorter backoff with the same attempt cap; slow-down
// signals take one short fixed delay; connection errors get exactly one
// immediate retry. Terminal kinds are never retried. When the primary
// category's attempts are exhausted, one server-error-style pass runs before
// the last error is returned, covering errors initially misclassified as
// rate limits.
type Engine struct {
	maxAttempts int
	onStatus    StatusFunc
	sleepFunc   func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts sets the call cap for the backoff-driven categories.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithStatusCallback registers fn to be called before every retry.
func WithStatusCallback(fn StatusFunc) Option {
	return func(e *Engine) { e.onStatus = fn }
}

// WithSleepFunc replaces the delay primitive, letting tests run without
// real waiting.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleepFunc = fn }
}

// New builds an Engine with the default policy.
func New(opts ...Option) *Engine {
	engine := &Engine{
		maxAttempts: DefaultMaxAttempts,
		sleepFunc:   contextSleep,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// allowedRetries is the retry budget per category; calls = retries + 1.
func (e *Engine) allowedRetries(kind Kind) int {
	switch kind {
	case KindRateLimit, KindServerError:
		return e.maxAttempts - 1
	case KindSlowDown, KindConnectionError:
		return 1
	}
	return 0
}

func (e *Engine) delayFor(kind Kind, retryNumber int, hint time.Duration) time.Duration {
	switch kind {
	case KindRateLimit:
		if hint > 0 {
			return hint
		}
		return computeBackoff(rateLimitInitialBackoff, retryNumber-1)
	case KindServerError:
		return computeBackoff(serverInitialBackoff, retryNumber-1)
	case KindSlowDown:
		return slowDownDelay
	case KindConnectionError:
		return 0
	}
	return 0
}

// computeBackoff returns initial * factor^attempt capped at maxBackoff, plus
// up to 10% jitter.
func computeBackoff(initial time.Duration, attempt int) time.Duration {
	base := float64(initial) * math.Pow(backoffFactor, float64(attempt))
	if base > float64(maxBackoff) {
		base = float64(maxBackoff)
	}
	jitter := base * jitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

func retryAfterHint(err error) time.Duration {
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.RetryAfter
	}
	return 0
}

func (e *Engine) status(kind Kind, delay time.Duration, retryNumber, budget int) {
	if e.onStatus == nil {
		return
	}
	var message string
	switch kind {
	case KindRateLimit:
		message = fmt.Sprintf("rate limited, retrying in %s (attempt %d/%d)", delay.Round(time.Millisecond), retryNumber+1, budget+1)
	case KindServerError:
		message = fmt.Sprintf("provider error, retrying in %s (attempt %d/%d)", delay.Round(time.Millisecond), retryNumber+1, budget+1)
	case KindSlowDown:
		message = fmt.Sprintf("provider overloaded, pausing %s before retry", delay.Round(time.Millisecond))
	case KindConnectionError:
		message = "connection dropped, retrying immediately"
	default:
		message = fmt.Sprintf("retrying after %s failure", kind)
	}
	e.onStatus(message)
}

// statusFallback reports the single final pass that runs after a category's
// own budget is spent; it has no attempt numbering of its own.
func (e *Engine) statusFallback(kind Kind, delay time.Duration) {
	if e.onStatus == nil {
		return
	}
	e.onStatus(fmt.Sprintf("%s retries exhausted, one final attempt in %s", kind, delay.Round(time.Millisecond)))
}

// Do runs op under engine's retry policy and returns its first successful
// value. Non-retryable failures and context cancellation propagate
// immediately; on exhaustion the last classified error is returned.
func Do[T any](ctx context.Context, engine *Engine, op func(context.Context) (T, error)) (T, error) {
	var zero T
	retries := make(map[Kind]int)
	fallbackUsed := false

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}

		kind := Classify(err)
		if !kind.Retryable() {
			return zero, err
		}

		retries[kind]++
		retryNumber := retries[kind]
		budget := engine.allowedRetries(kind)

		delay := engine.delayFor(kind, retryNumber, retryAfterHint(err))
		if retryNumber > budget {
			// Primary recovery exhausted: one server-error-style pass,
			// then give up for good.
			if fallbackUsed {
				return zero, err
			}
			fallbackUsed = true
			delay = computeBackoff(serverInitialBackoff, 0)
			engine.statusFallback(kind, delay)
		} else {
			engine.status(kind, delay, retryNumber, budget)
		}
		if sleepErr := engine.sleepFunc(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}
