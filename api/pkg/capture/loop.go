package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
	"github.com/breezy-desktop/xr-renderer/api/pkg/drm"
	"github.com/breezy-desktop/xr-renderer/api/pkg/pacing"
)

// failureBackoff is how long the loop waits after a frame it could not get.
const failureBackoff = 10 * time.Millisecond

// Publisher receives captured frames and takes ownership of them.
type Publisher interface {
	Publish(buf *dmabuf.Buffer)
}

// Acquirer produces frames; *Session is the real one.
type Acquirer interface {
	Acquire(ctx context.Context) (*dmabuf.Buffer, error)
}

type LoopStats struct {
	Captured  uint64
	Failures  uint64
	Transient uint64
}

// Loop captures at a fixed rate and publishes every frame.
type Loop struct {
	source     Acquirer
	publisher  Publisher
	pacer      *pacing.Pacer
	shouldStop func() bool

	captured  atomic.Uint64
	failures  atomic.Uint64
	transient atomic.Uint64
}

func NewLoop(source Acquirer, publisher Publisher, fps float64, shouldStop func() bool) *Loop {
	if shouldStop == nil {
		shouldStop = func() bool { return false }
	}
	return &Loop{
		source:     source,
		publisher:  publisher,
		pacer:      pacing.New(fps),
		shouldStop: shouldStop,
	}
}

func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Captured:  l.captured.Load(),
		Failures:  l.failures.Load(),
		Transient: l.transient.Load(),
	}
}

// Run captures until ctx is done or the stop flag is set. It returns nil on
// a requested stop and the error for a fatal capture failure.
func (l *Loop) Run(ctx context.Context) error {
	logger := log.With().Str("component", "capture_loop").Logger()
	logger.Info().Dur("period", l.pacer.Period()).Msg("capture loop started")
	defer func() {
		logger.Info().
			Uint64("captured", l.captured.Load()).
			Uint64("failures", l.failures.Load()).
			Msg("capture loop stopped")
	}()

	for !l.shouldStop() && ctx.Err() == nil {
		buf, err := l.source.Acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrFatal) {
				logger.Error().Err(err).Msg("capture failed")
				return err
			}
			l.failures.Add(1)
			if drm.IsTransient(err) {
				l.transient.Add(1)
				logger.Warn().Err(err).Msg("transient capture failure")
			} else {
				// output not up yet or mid mode change
				logger.Debug().Err(err).Msg("no frame this cycle")
			}
			if pacing.Sleep(ctx, failureBackoff) != nil {
				return nil
			}
			continue
		}

		l.publisher.Publish(buf)
		l.captured.Add(1)

		if l.pacer.Wait(ctx) != nil {
			return nil
		}
	}
	return nil
}
