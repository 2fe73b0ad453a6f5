package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

// RetryPolicy bounds how long and how often a remote call is retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy returns three attempts within a two second budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  2 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = p.MaxElapsedTime
	eb.Reset()

	var b backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// remote applies breaker and retry to every call made to one dependency.
type remote struct {
	dependency string
	breaker    *Breaker
	retry      RetryPolicy
	logger     zerolog.Logger
}

func newRemote(dependency string, breaker *Breaker, retry RetryPolicy, logger zerolog.Logger) *remote {
	return &remote{
		dependency: dependency,
		breaker:    breaker,
		retry:      retry,
		logger:     logger,
	}
}

// do retries fn through the breaker. An open breaker ends the loop at once.
func (r *remote) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := r.breaker.Execute(func() error { return fn(ctx) })
		if err == nil {
			return nil
		}
		if isRejectedByBreaker(err) || !isRetryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("remote call failed, retrying")
	}

	err := backoff.RetryNotify(op, r.retry.backOff(ctx), notify)
	observability.GatewayCalls().WithLabelValues(r.dependency, operation, outcomeLabel(err)).Inc()
	return err
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case isRejectedByBreaker(err):
		return "rejected"
	default:
		return "failure"
	}
}
