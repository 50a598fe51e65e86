package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/recur/internal/logging"
)

const unit = time.Millisecond

type retryCall struct {
	op      string
	attempt int
	err     error
	wait    time.Duration
}

func recordingPolicy(attempts int) (*Policy, *[]retryCall, *logging.TestLogger) {
	tl := logging.NewTestLogger()
	var calls []retryCall
	p := &Policy{
		MaxAttempts: attempts,
		BaseDelay:   unit,
		Logger:      tl.Logger,
		OnRetry: func(_ context.Context, op string, attempt int, err error, wait time.Duration) {
			calls = append(calls, retryCall{op, attempt, err, wait})
		},
	}
	return p, &calls, tl
}

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	p, calls, tl := recordingPolicy(3)
	transient := errors.New("503 service unavailable")

	n := 0
	got, err := Do(context.Background(), p, "generate", func(context.Context) (string, error) {
		n++
		if n <= 2 {
			return "", transient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, n)

	require.Len(t, *calls, 2)
	assert.Equal(t, unit, (*calls)[0].wait)
	assert.Equal(t, 2*unit, (*calls)[1].wait)
	assert.Equal(t, 1, (*calls)[0].attempt)
	assert.Equal(t, 2, (*calls)[1].attempt)
	assert.Equal(t, "generate", (*calls)[0].op)
	assert.Same(t, transient, (*calls)[0].err)

	assert.Equal(t, 2, tl.CountLevel(zapcore.WarnLevel))
	tl.AssertField(t, "retrying", "op", "generate")
	tl.AssertField(t, "retrying", "attempt", int64(1))
}

func TestDo_NoRetryOnSuccess(t *testing.T) {
	p, calls, tl := recordingPolicy(3)

	n := 0
	got, err := Do(context.Background(), p, "grade", func(context.Context) (int, error) {
		n++
		return 87, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 87, got)
	assert.Equal(t, 1, n)
	assert.Empty(t, *calls)
	assert.Zero(t, tl.CountLevel(zapcore.WarnLevel))
}

func TestDo_ExhaustionReturnsOriginalError(t *testing.T) {
	p, calls, _ := recordingPolicy(3)
	original := errors.New("quota exceeded")

	n := 0
	_, err := Do(context.Background(), p, "generate", func(context.Context) (string, error) {
		n++
		return "", original
	})

	require.Error(t, err)
	assert.Same(t, original, err, "final failure must be propagated unchanged")
	assert.Equal(t, 3, n)
	assert.Len(t, *calls, 2)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	p, calls, _ := recordingPolicy(3)
	bad := errors.New("invalid api key")

	n := 0
	_, err := Do(context.Background(), p, "generate", func(context.Context) (string, error) {
		n++
		return "", Permanent(bad)
	})

	assert.Same(t, bad, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, *calls)
}

func TestDo_SingleAttemptPermanentIsUnwrapped(t *testing.T) {
	p, _, _ := recordingPolicy(1)
	bad := errors.New("bad request")

	_, err := Do(context.Background(), p, "generate", func(context.Context) (string, error) {
		return "", Permanent(bad)
	})

	assert.Same(t, bad, err)
}

func TestDo_CancelledContext(t *testing.T) {
	p, _, _ := recordingPolicy(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Do(ctx, p, "generate", func(context.Context) (string, error) {
		called = true
		return "", nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_CancelDuringWait(t *testing.T) {
	p := &Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	n := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, "generate", func(context.Context) (string, error) {
			n++
			return "", errors.New("transient")
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDo_NilPolicyUsesDefaults(t *testing.T) {
	got, err := Do(context.Background(), nil, "generate", func(context.Context) (string, error) {
		return "fine", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fine", got)

	var p *Policy
	assert.Equal(t, DefaultMaxAttempts, p.attempts())
	assert.Equal(t, DefaultBaseDelay, p.baseDelay())
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy(nil)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
}

func TestDoubling(t *testing.T) {
	d := NewDoubling(time.Second)
	assert.Equal(t, time.Second, d.NextBackOff())
	assert.Equal(t, 2*time.Second, d.NextBackOff())
	assert.Equal(t, 4*time.Second, d.NextBackOff())

	d.Reset()
	assert.Equal(t, time.Second, d.NextBackOff())

	var zero Doubling
	zero.Base = unit
	assert.Equal(t, unit, zero.NextBackOff())
}
