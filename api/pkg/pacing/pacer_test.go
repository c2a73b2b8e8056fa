package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	jitter time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d + c.jitter)
	return nil
}

func newTestPacer(period time.Duration, clock *fakeClock) *Pacer {
	p := NewWithPeriod(period)
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p
}

func TestPeriodForRate(t *testing.T) {
	assert.Equal(t, 16666666*time.Nanosecond, PeriodForRate(60))
	assert.Equal(t, 11111111*time.Nanosecond, PeriodForRate(90))
	assert.Equal(t, time.Duration(0), PeriodForRate(0))
}

func TestPacer_NoDrift(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := &fakeClock{now: start, jitter: 300 * time.Microsecond}
	p := newTestPacer(10*time.Millisecond, clock)

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		// each frame takes a variable amount of work
		clock.now = clock.now.Add(time.Duration(i%5) * time.Millisecond)
		require.NoError(t, p.Wait(ctx))
	}

	// deadlines are start + n*period regardless of jitter and work time
	assert.Equal(t, start.Add(100*10*time.Millisecond), p.Next())
	assert.Equal(t, uint64(0), p.Missed)
}

func TestPacer_ResyncsWhenFarBehind(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := &fakeClock{now: start}
	p := newTestPacer(10*time.Millisecond, clock)

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))

	// a 55ms stall
	clock.now = clock.now.Add(55 * time.Millisecond)
	require.NoError(t, p.Wait(ctx))

	assert.Equal(t, clock.now.Add(10*time.Millisecond), p.Next())
	assert.Greater(t, p.Missed, uint64(0))

	slept := len(clock.slept)
	require.NoError(t, p.Wait(ctx))
	assert.Len(t, clock.slept, slept+1)
}

func TestPacer_ZeroPeriod(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	p := newTestPacer(PeriodForRate(0), clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Empty(t, clock.slept)
	assert.Equal(t, uint64(0), p.Missed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := time.Now()
	err := Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(started), time.Second)
}
