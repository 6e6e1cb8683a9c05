package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/ratelimiter"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/metrics"
	"github.com/Belphemur/SubTranslate/internal/models"
)

// RateLimiter spaces remote calls. Implementations must be safe for concurrent use.
type RateLimiter interface {
	AcquirePermit(ctx context.Context) error
}

// NewRateLimiter returns a limiter that lets at most one call start per interval,
// or nil when interval is not positive.
func NewRateLimiter(interval time.Duration) RateLimiter {
	if interval <= 0 {
		return nil
	}
	return ratelimiter.NewSmoothBuilderWithMaxRate[any](interval).Build()
}

// Retryer runs remote calls under a retry policy and an optional shared rate limiter.
// Only rate-limit and transient failures are retried; safety blocks, fatal
// responses and cancellation return after the first attempt.
type Retryer struct {
	policy  models.RetryPolicy
	limiter RateLimiter
}

// NewRetryer creates a Retryer. limiter may be nil.
func NewRetryer(policy models.RetryPolicy, limiter RateLimiter) *Retryer {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retryer{policy: policy, limiter: limiter}
}

// Do calls fn until it succeeds, fails with a non-retryable error or runs out of attempts.
// A permit is acquired from the rate limiter before every attempt. The returned
// error is an *apperrors.TranslationError wrapping the last failure.
func Do[R any](ctx context.Context, r *Retryer, op string, fn func(context.Context) (R, error)) (R, error) {
	logger := config.GetLogger()

	builder := retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			return err != nil && apperrors.Retryable(err)
		}).
		WithMaxAttempts(r.policy.MaxAttempts).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[R]) {
			metrics.RetriesTotal.Inc()
			logger.Warn().
				Err(e.LastError()).
				Str("op", op).
				Int("attempt", e.Attempts()).
				Int("max_attempts", r.policy.MaxAttempts).
				Msg("Retrying translation call")
		})
	if r.policy.BaseDelay > 0 {
		builder = builder.WithDelayFunc(func(exec failsafe.ExecutionAttempt[R]) time.Duration {
			return backoffDelay(r.policy, max(exec.Attempts()-1, 0), rand.Float64())
		})
	}

	attempts := 0
	result, err := failsafe.With[R](builder.Build()).WithContext(ctx).Get(func() (R, error) {
		attempts++
		if r.limiter != nil {
			if err := r.limiter.AcquirePermit(ctx); err != nil {
				var zero R
				return zero, err
			}
		}
		res, err := fn(ctx)
		metrics.RemoteCallsTotal.WithLabelValues(outcome(err)).Inc()
		return res, err
	})
	if err != nil {
		var zero R
		return zero, &apperrors.TranslationError{Attempts: attempts, Err: err}
	}
	return result, nil
}

// backoffDelay is the wait before the retry that follows the given zero-based
// failed attempt: min(base*2^attempt + jitter*u, max). Jitter only ever adds.
func backoffDelay(policy models.RetryPolicy, attempt int, u float64) time.Duration {
	delay := policy.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if policy.MaxDelay > 0 && delay >= policy.MaxDelay {
			break
		}
	}
	delay += time.Duration(u * float64(policy.Jitter))
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return apperrors.Classify(err).String()
}
