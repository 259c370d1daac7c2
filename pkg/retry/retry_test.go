package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return Fatal(errors.New("bad request"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.EqualError(t, err, "bad request")
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retries []int
	err := RetryWithCallback(context.Background(), fastPolicy(4), func() error {
		calls++
		return errors.New("still failing")
	}, func(attempt int, err error, next time.Duration) {
		retries = append(retries, attempt)
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retries)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, ConstantPolicy(3, time.Second), func() error {
		return errors.New("nope")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	p := Policy{InitialInterval: 500 * time.Millisecond, MaxInterval: 60 * time.Second, Multiplier: 2}

	assert.Equal(t, 500*time.Millisecond, Delay(p, 0))
	assert.Equal(t, time.Second, Delay(p, 1))
	assert.Equal(t, 2*time.Second, Delay(p, 2))
	assert.Equal(t, 60*time.Second, Delay(p, 20))
}
