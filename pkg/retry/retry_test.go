package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igclient/pkg/errors"
	"igclient/pkg/logger"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     context.Background(),
		Logger:      logger.NewTestLogger(),
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig(3))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.KindConnection, "connection reset", 0)
		}
		return nil
	}, testConfig(5))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.KindBadCredentials, "bad_password", 400)
	}, testConfig(5))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errs.IsKind(err, errs.KindBadCredentials))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.KindThrottled, "slow down", 429)
	}, testConfig(3))
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts")
	assert.True(t, errs.IsKind(err, errs.KindThrottled))
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(0)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			return errs.New(errs.KindServer, "unavailable", 503)
		}, cfg)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.True(t, DefaultRetryIf(errs.New(errs.KindConnection, "x", 0)))
	assert.True(t, DefaultRetryIf(errs.New(errs.KindThrottled, "x", 429)))
	assert.True(t, DefaultRetryIf(errs.New(errs.KindServer, "x", 500)))
	assert.False(t, DefaultRetryIf(errs.New(errs.KindCheckpointRequired, "x", 400)))
	assert.False(t, DefaultRetryIf(errs.New(errs.KindLoginRequired, "x", 403)))
	assert.False(t, DefaultRetryIf(context.Canceled))
}

func TestExponentialBackoff(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}
	assert.Equal(t, time.Duration(0), eb.NextDelay(0))
	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 4*time.Second, eb.NextDelay(3))
	assert.Equal(t, 10*time.Second, eb.NextDelay(10))
}

func TestExponentialBackoffJitterStaysBounded(t *testing.T) {
	eb := DefaultExponentialBackoff()
	for i := 0; i < 50; i++ {
		d := eb.NextDelay(2)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}
