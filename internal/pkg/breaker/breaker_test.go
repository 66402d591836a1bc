package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/breaker"
)

var errGateway = errors.New("gateway timeout")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreaker(threshold int, reset time.Duration) (*breaker.Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := breaker.New("test", threshold, reset, breaker.WithClock(clock.now))
	return b, clock
}

func fail(ctx context.Context) error    { return errGateway }
func succeed(ctx context.Context) error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newBreaker(3, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := b.Do(ctx, fail)
		require.ErrorIs(t, err, errGateway)
	}
	assert.Equal(t, breaker.StateOpen, b.State())

	// next call must fail fast without invoking the dependency
	called := false
	err := b.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newBreaker(3, 10*time.Second)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	require.Error(t, b.Do(ctx, fail))
	require.NoError(t, b.Do(ctx, succeed))
	require.Error(t, b.Do(ctx, fail))
	require.Error(t, b.Do(ctx, fail))

	// still closed: failures were not consecutive past the threshold
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreakerHalfOpenTrialSuccessCloses(t *testing.T) {
	b, clock := newBreaker(3, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Do(ctx, fail))
	}
	require.Equal(t, breaker.StateOpen, b.State())

	clock.advance(10 * time.Second)
	assert.Equal(t, breaker.StateHalfOpen, b.State())

	// exactly one trial call passes through
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreakerHalfOpenTrialFailureReopens(t *testing.T) {
	b, clock := newBreaker(3, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Do(ctx, fail))
	}
	clock.advance(10 * time.Second)

	err := b.Do(ctx, fail)
	require.ErrorIs(t, err, errGateway)
	assert.Equal(t, breaker.StateOpen, b.State())

	// timeout was reset: still open just before the full period elapses
	clock.advance(9 * time.Second)
	err = b.Do(ctx, succeed)
	assert.ErrorIs(t, err, breaker.ErrOpen)

	clock.advance(1 * time.Second)
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreakerErrOpenIsDistinguishable(t *testing.T) {
	b, _ := newBreaker(1, time.Minute)
	ctx := context.Background()

	require.ErrorIs(t, b.Do(ctx, fail), errGateway)
	err := b.Do(ctx, succeed)
	require.ErrorIs(t, err, breaker.ErrOpen)
	assert.NotErrorIs(t, err, errGateway)
}
