package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(b *Breaker) Policy {
	return Policy{
		Name:     "primary",
		Attempts: 3,
		Timeout:  50 * time.Millisecond,
		Backoff:  time.Millisecond,
		Breaker:  b,
	}
}

func asFailure(t *testing.T, err error) *Failure {
	t.Helper()
	var f *Failure
	require.ErrorAs(t, err, &f)
	return f
}

func TestExecute_SuccessFirstTry(t *testing.T) {
	calls := 0
	got, err := Execute(context.Background(), testPolicy(nil), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetriesTransientFailures(t *testing.T) {
	calls := 0
	got, err := Execute(context.Background(), testPolicy(nil), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, StatusFailure(503)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestExecute_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), testPolicy(nil), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})

	f := asFailure(t, err)
	assert.Equal(t, KindUnavailable, f.Kind)
	assert.Equal(t, 3, calls)
}

func TestExecute_MalformedIsNotRetried(t *testing.T) {
	b := NewBreaker("primary", 5, time.Minute)
	calls := 0
	_, err := Execute(context.Background(), testPolicy(b), func(ctx context.Context) (int, error) {
		calls++
		return 0, Malformed("reply is blank")
	})

	f := asFailure(t, err)
	assert.Equal(t, KindMalformed, f.Kind)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, b.Snapshot().FailureCount)
}

func TestExecute_ClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	_, err := Execute(context.Background(), testPolicy(nil), func(ctx context.Context) (int, error) {
		calls++
		return 0, StatusFailure(400)
	})

	assert.Equal(t, KindUnavailable, asFailure(t, err).Kind)
	assert.Equal(t, 1, calls)
}

func TestExecute_AttemptTimeout(t *testing.T) {
	p := testPolicy(nil)
	p.Attempts = 2
	p.Timeout = 10 * time.Millisecond

	calls := 0
	_, err := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.Equal(t, KindTimeout, asFailure(t, err).Kind)
	assert.Equal(t, 2, calls)
}

func TestExecute_OpenBreakerStopsRetries(t *testing.T) {
	b := NewBreaker("primary", 2, time.Minute)
	calls := 0
	_, err := Execute(context.Background(), testPolicy(b), func(ctx context.Context) (int, error) {
		calls++
		return 0, StatusFailure(500)
	})

	assert.Equal(t, KindCircuitOpen, asFailure(t, err).Kind)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateOpen, b.Snapshot().State)

	_, err = Execute(context.Background(), testPolicy(b), func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.Equal(t, KindCircuitOpen, asFailure(t, err).Kind)
	assert.Equal(t, 2, calls)
}

func TestExecute_CancelledParentNotCounted(t *testing.T) {
	b := NewBreaker("primary", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := Execute(ctx, testPolicy(b), func(ctx context.Context) (int, error) {
		cancel()
		return 0, context.Canceled
	})

	assert.Equal(t, KindCanceled, asFailure(t, err).Kind)
	assert.Equal(t, StateClosed, b.Snapshot().State)
	assert.Equal(t, 0, b.Snapshot().FailureCount)
}

func TestExecute_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Execute(ctx, testPolicy(nil), func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})

	assert.Equal(t, KindCanceled, asFailure(t, err).Kind)
	assert.Zero(t, calls)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"wrapped deadline", errors.Join(errors.New("post"), context.DeadlineExceeded), KindTimeout, true},
		{"canceled", context.Canceled, KindCanceled, false},
		{"circuit", ErrCircuitOpen, KindCircuitOpen, false},
		{"transport", errors.New("dial tcp: connection refused"), KindUnavailable, true},
		{"5xx", StatusFailure(502), KindUnavailable, true},
		{"429", StatusFailure(429), KindUnavailable, true},
		{"4xx", StatusFailure(404), KindUnavailable, false},
		{"malformed", Malformed("bad json"), KindMalformed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.err)
			require.NotNil(t, f)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.retryable, f.Retryable)
		})
	}

	assert.Nil(t, Classify(nil))
}
