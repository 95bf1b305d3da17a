// Package retry runs an invocation under a bounded exponential backoff policy.
// The invocation classifies its own result as Ok, Retryable or Fatal, so the
// loop never inspects errors itself.
package retry

import (
	"context"
	"errors"
	"time"
)

// Kind classifies an attempt's outcome.
type Kind int

const (
	KindOk Kind = iota
	KindRetryable
	KindFatal
)

// Outcome is the tagged result of one attempt.
type Outcome[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Kind: KindOk, Value: v}
}

// Retryable wraps an error worth another attempt.
func Retryable[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: KindRetryable, Err: err}
}

// Fatal wraps an error that must not be retried.
func Fatal[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: KindFatal, Err: err}
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is three attempts starting at 200ms, capped at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Delay returns the wait before the given retry (1-based attempt that just failed).
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ErrExhausted wraps the last error once MaxAttempts is reached.
var ErrExhausted = errors.New("retry attempts exhausted")

// Result reports the final value and how many attempts ran.
type Result[T any] struct {
	Value    T
	Attempts int
}

// Do calls fn until it returns Ok or Fatal, the attempts run out, or ctx ends.
// Exhaustion returns an error matching both ErrExhausted and the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) Outcome[T]) (Result[T], error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out := fn(ctx, attempt)
		switch out.Kind {
		case KindOk:
			return Result[T]{Value: out.Value, Attempts: attempt}, nil
		case KindFatal:
			return Result[T]{Attempts: attempt}, out.Err
		}

		last = out.Err
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result[T]{Attempts: attempt}, errors.Join(ctx.Err(), last)
		case <-timer.C:
		}
	}

	return Result[T]{Attempts: maxAttempts}, errors.Join(ErrExhausted, last)
}
