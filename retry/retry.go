// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/larder/failure"
)

// Policy describes how a fallible call is attempted.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first (must be > 0).
	MaxAttempts int

	// MinDelay is the wait after the first failed attempt.
	MinDelay time.Duration

	// MaxDelay caps any single wait. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier grows the wait after each failed attempt. Values <= 0 mean 2.
	Multiplier float64

	// Timeout bounds each attempt. Zero means the caller's context only.
	Timeout time.Duration

	// Progressive stretches Timeout to 1.5x on the second attempt and 2x after.
	Progressive bool

	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, delay time.Duration, err *failure.ClassifiedError)
}

// DefaultPolicy returns three attempts with a 1s floor and 30s ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		MinDelay:    1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
	}
}

// Once returns a single-attempt policy bounded by timeout.
func Once(timeout time.Duration) Policy {
	return Policy{MaxAttempts: 1, Timeout: timeout}
}

// WithTimeout returns a copy of p with the per-attempt timeout set.
func (p Policy) WithTimeout(timeout time.Duration) Policy {
	p.Timeout = timeout
	return p
}

// WithMaxAttempts returns a copy of p with the attempt budget set.
func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	delay := float64(p.MinDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// AttemptTimeout returns the timeout for the given attempt (1-based).
func (p Policy) AttemptTimeout(attempt int) time.Duration {
	if p.Timeout <= 0 || !p.Progressive || attempt <= 1 {
		return p.Timeout
	}
	if attempt == 2 {
		return p.Timeout * 3 / 2
	}
	return p.Timeout * 2
}

// Do runs fn under the policy. Every failure is classified; kinds that should
// not be retried return immediately. When attempts run out the last
// ClassifiedError is returned with its attempt count recorded.
func Do[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		return zero, ErrInvalidMaxAttempts
	}

	var last *failure.ClassifiedError
	var prevDelay time.Duration
	attempts := 0
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return zero, failure.Classify(err, operation, nil).WithAttempts(attempts)
		}

		attempts = attempt
		value, err := runAttempt(ctx, p.AttemptTimeout(attempt), fn)
		if err == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "operation", operation, "attempt", attempt)
			}
			return value, nil
		}

		last = failure.Classify(err, operation, nil)
		if !last.ShouldRetry {
			slog.Debug("operation failed with non-retryable error", "operation", operation, "kind", last.Kind, "attempt", attempt)
			break
		}

		slog.Debug("operation failed, will retry", "operation", operation, "kind", last.Kind,
			"attempt", attempt, "maxAttempts", p.MaxAttempts, "err", err)

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if ra := last.RetryAfter(); ra > delay {
			delay = ra
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		if delay < prevDelay {
			delay = prevDelay
		}
		prevDelay = delay

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, last)
		}

		// Sleep with context awareness
		if err := sleep(ctx, delay); err != nil {
			return zero, failure.Classify(err, operation, nil).WithAttempts(attempts)
		}
	}

	return zero, last.WithAttempts(attempts)
}

// DoErr is Do for calls that return only an error.
func DoErr(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func sleep(ctx context.Context, d time.Duration) error {
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

const mb = 1 << 20

// ScaleForFileSize stretches base for large inputs: up to 10MB 1x, 50MB 1.5x,
// 100MB 2x, beyond that 3x.
func ScaleForFileSize(base time.Duration, sizeBytes int64) time.Duration {
	switch {
	case sizeBytes <= 10*mb:
		return base
	case sizeBytes <= 50*mb:
		return base * 3 / 2
	case sizeBytes <= 100*mb:
		return base * 2
	default:
		return base * 3
	}
}
