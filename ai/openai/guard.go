package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/larder/failure"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// guard paces calls to one service and stops calling it while it is failing.
type guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
}

// newLimiter returns nil when pacing is disabled.
func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond)))
}

func newGuard(name string, limiter *rate.Limiter, logger *slog.Logger) *guard {
	return &guard{
		name:    name,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: countsAsHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "service", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// countsAsHealthy reports whether err says nothing about the service's health.
// Only transient service-side failures trip the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	switch failure.KindOf(err) {
	case failure.KindServerError, failure.KindTimeout, failure.KindRateLimited:
		return false
	default:
		return true
	}
}

// guarded runs fn behind g's rate limiter and circuit breaker.
// A rejected call surfaces as a 503 APIError so it classifies as a server error.
func guarded[T any](ctx context.Context, g *guard, fn func() (T, error)) (T, error) {
	var zero T
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, fmt.Errorf("%s: %w: %v", g.name, context.DeadlineExceeded, err)
		}
	}

	result, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &APIError{
				Status:  http.StatusServiceUnavailable,
				Message: g.name + ": " + err.Error(),
			}
		}
		return zero, err
	}
	return result.(T), nil
}

// state exposes the breaker state for tests and diagnostics.
func (g *guard) state() gobreaker.State {
	return g.breaker.State()
}
