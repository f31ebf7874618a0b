// Package retry runs an operation with classified exponential backoff.
//
// Every failure is retried; classification only changes how long to wait.
// Throttling backs off harder than ordinary failures and timeouts back off
// the longest.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrAttemptsExhausted wraps the last error once maxAttempts is reached.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
	// ErrThrottled marks a rate-limit or overload response.
	ErrThrottled = errors.New("throttled")
	// ErrTimeout marks an operation that timed out.
	ErrTimeout = errors.New("timeout")
)

// Class selects the backoff multiplier.
type Class int

const (
	ClassOther Class = iota
	ClassThrottled
	ClassTimeout
)

func (c Class) String() string {
	switch c {
	case ClassThrottled:
		return "throttled"
	case ClassTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// StatusCoder is implemented by errors carrying an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Classify maps an error to its backoff class.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}
	if errors.Is(err, ErrThrottled) {
		return ClassThrottled
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		switch sc.HTTPStatus() {
		case http.StatusTooManyRequests, 529:
			return ClassThrottled
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ClassTimeout
		}
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "overloaded"):
		return ClassThrottled
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ClassTimeout
	}
	return ClassOther
}

// Policy configures the backoff schedule.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff multipliers per class.
const (
	throttledMultiplier = 5
	timeoutMultiplier   = 10
)

// DefaultPolicy waits 1s, 2s, 4s... for ordinary failures, capped at 2 minutes.
func DefaultPolicy() Policy {
	return Policy{BaseDelay: time.Second, MaxDelay: 2 * time.Minute}
}

// Delay returns the wait before retrying after the given failed attempt
// (1-based). It is deterministic.
func (p Policy) Delay(attempt int, class Class) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := float64(base) * math.Pow(2, float64(attempt-1))
	switch class {
	case ClassThrottled:
		d *= throttledMultiplier
	case ClassTimeout:
		d *= timeoutMultiplier
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do invokes op until it succeeds or maxAttempts failures have occurred.
// The returned error wraps both ErrAttemptsExhausted and the last failure.
// Cancelling ctx stops retrying and returns the context error.
func Do[T any](ctx context.Context, p Policy, maxAttempts int, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.Delay(attempt, Classify(err))); err != nil {
			return zero, fmt.Errorf("%w (last error: %w)", err, lastErr)
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, lastErr)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, maxAttempts int, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, maxAttempts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
