// Package retry wraps fallible backend calls in a bounded exponential backoff.
//
// A Policy allows MaxAttempts total attempts. Waits start at BaseDelay and
// double on each retry. When the last attempt fails the original error is
// returned unchanged so callers can match it with errors.Is and errors.As.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recur/internal/logging"
)

// Defaults used when a Policy field is zero.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryFunc observes a retry before the wait begins. attempt is the 1-based
// number of the attempt that just failed. ctx is the context of the call.
type RetryFunc func(ctx context.Context, op string, attempt int, err error, wait time.Duration)

// Policy configures retries for a single logical call.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *logging.Logger
	OnRetry     RetryFunc
}

// NewPolicy returns a policy with the default bound and base delay.
func NewPolicy(logger *logging.Logger) *Policy {
	return &Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Logger:      logger,
	}
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p *Policy) attempts() int {
	if p == nil || p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p *Policy) baseDelay() time.Duration {
	if p == nil || p.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return p.BaseDelay
}

// Do runs call under the policy. A nil policy uses the defaults.
func Do[T any](ctx context.Context, p *Policy, op string, call func(context.Context) (T, error)) (T, error) {
	var logger *logging.Logger
	var onRetry RetryFunc
	if p != nil {
		logger = p.Logger
		onRetry = p.OnRetry
	}
	logger = logging.OrNop(logger)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return call(ctx)
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn(ctx, "backend call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.attempts()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if onRetry != nil {
			onRetry(ctx, op, attempt, err, wait)
		}
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(NewDoubling(p.baseDelay())),
		backoff.WithMaxTries(uint(p.attempts())),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return result, err
	}
	return result, nil
}
