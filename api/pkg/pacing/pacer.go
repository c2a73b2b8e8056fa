// Package pacing schedules fixed-rate loops against an accumulated deadline
// so that per-iteration jitter doesn't turn into drift.
package pacing

import (
	"context"
	"time"
)

// Pacer hands out frame deadlines spaced exactly one period apart.
type Pacer struct {
	period time.Duration
	next   time.Time
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	// Missed counts deadlines skipped after falling behind.
	Missed uint64
}

// New returns a pacer for the given rate in frames per second.
func New(fps float64) *Pacer {
	return NewWithPeriod(PeriodForRate(fps))
}

func NewWithPeriod(period time.Duration) *Pacer {
	return &Pacer{
		period: period,
		now:    time.Now,
		sleep:  Sleep,
	}
}

// PeriodForRate converts frames per second to a frame period. Rates <= 0
// give a zero period, i.e. an unpaced loop.
func PeriodForRate(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func (p *Pacer) Period() time.Duration {
	return p.period
}

// Next is the deadline the next Wait sleeps until.
func (p *Pacer) Next() time.Time {
	return p.next
}

// Wait sleeps until the current deadline and advances it by one period. The
// deadline is accumulated, not re-derived from the wake-up time. If the loop
// has fallen more than a full period behind, the schedule restarts from now
// rather than bursting through the missed frames. An unpaced pacer (zero
// period) returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.period <= 0 {
		return ctx.Err()
	}
	now := p.now()
	if p.next.IsZero() {
		p.next = now
	}

	if d := p.next.Sub(now); d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			return err
		}
	}

	p.next = p.next.Add(p.period)
	if behind := p.now().Sub(p.next); behind > p.period {
		p.Missed += uint64(behind / p.period)
		p.next = p.now().Add(p.period)
	}
	return ctx.Err()
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
