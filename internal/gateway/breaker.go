package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

// BreakerConfig tunes the circuit breaker guarding one remote dependency.
type BreakerConfig struct {
	// FailureRateThreshold is the failure percentage (0-100) that opens the breaker.
	FailureRateThreshold float64
	// MinimumRequests is the number of calls in a window before the rate is evaluated.
	MinimumRequests uint32
	// Window is the period after which closed state counts are cleared.
	Window time.Duration
	// OpenTimeout is how long the breaker stays open before trying again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial calls allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig mirrors the settings used in production.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureRateThreshold: 50,
		MinimumRequests:      5,
		Window:               10 * time.Second,
		OpenTimeout:          10 * time.Second,
		HalfOpenRequests:     3,
	}
}

// Breaker is a process wide circuit breaker for one remote dependency.
// It is safe for concurrent use and should be shared by reference.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker builds a breaker named after the dependency it guards.
func NewBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	defaults := DefaultBreakerConfig()
	if cfg.FailureRateThreshold <= 0 || cfg.FailureRateThreshold > 100 {
		cfg.FailureRateThreshold = defaults.FailureRateThreshold
	}
	if cfg.MinimumRequests == 0 {
		cfg.MinimumRequests = defaults.MinimumRequests
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}

	log := logger.With().Str("component", "circuit_breaker").Str("dependency", name).Logger()
	observability.GatewayBreakerState().WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumRequests {
				return false
			}
			rate := float64(counts.TotalFailures) * 100 / float64(counts.Requests)
			return rate >= cfg.FailureRateThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.GatewayBreakerState().WithLabelValues(name).Set(stateValue(to))
			event := log.Warn()
			if to == gobreaker.StateClosed {
				event = log.Info()
			}
			event.Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: isHealthyOutcome,
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the guarded dependency name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Execute runs fn unless the breaker rejects the call.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func isRejectedByBreaker(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// isHealthyOutcome decides whether a call counts against the remote dependency.
// Client errors and caller cancellation say nothing about the remote's health.
func isHealthyOutcome(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Temporary()
	}
	return false
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
