package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo(t *testing.T) {
	t.Run("should return value on first success", func(t *testing.T) {
		calls := 0
		res, err := retry.Do(context.Background(), fastPolicy(3), func(_ context.Context, _ int) retry.Outcome[string] {
			calls++
			return retry.Ok("done")
		})

		require.NoError(t, err)
		require.Equal(t, "done", res.Value)
		require.Equal(t, 1, res.Attempts)
		require.Equal(t, 1, calls)
	})

	t.Run("should retry retryable outcomes until success", func(t *testing.T) {
		res, err := retry.Do(context.Background(), fastPolicy(3), func(_ context.Context, attempt int) retry.Outcome[int] {
			if attempt < 3 {
				return retry.Retryable[int](errors.New("flaky"))
			}
			return retry.Ok(attempt)
		})

		require.NoError(t, err)
		require.Equal(t, 3, res.Value)
		require.Equal(t, 3, res.Attempts)
	})

	t.Run("should stop immediately on fatal outcome", func(t *testing.T) {
		fatal := errors.New("bad template")
		calls := 0
		res, err := retry.Do(context.Background(), fastPolicy(5), func(_ context.Context, _ int) retry.Outcome[int] {
			calls++
			return retry.Fatal[int](fatal)
		})

		require.ErrorIs(t, err, fatal)
		require.Equal(t, 1, calls)
		require.Equal(t, 1, res.Attempts)
	})

	t.Run("should report exhaustion with the last error", func(t *testing.T) {
		last := errors.New("timeout")
		res, err := retry.Do(context.Background(), fastPolicy(2), func(_ context.Context, _ int) retry.Outcome[int] {
			return retry.Retryable[int](last)
		})

		require.ErrorIs(t, err, retry.ErrExhausted)
		require.ErrorIs(t, err, last)
		require.Equal(t, 2, res.Attempts)
	})

	t.Run("should abort backoff when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		policy := retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour}

		_, err := retry.Do(ctx, policy, func(_ context.Context, _ int) retry.Outcome[int] {
			cancel()
			return retry.Retryable[int](errors.New("flaky"))
		})

		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestPolicy_Delay(t *testing.T) {
	p := retry.Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}

	require.Equal(t, 100*time.Millisecond, p.Delay(1))
	require.Equal(t, 200*time.Millisecond, p.Delay(2))
	require.Equal(t, 300*time.Millisecond, p.Delay(3))
	require.Equal(t, 300*time.Millisecond, p.Delay(10))
	require.Equal(t, time.Duration(0), retry.Policy{}.Delay(1))
}
