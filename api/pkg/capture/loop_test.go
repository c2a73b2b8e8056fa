package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
	"github.com/breezy-desktop/xr-renderer/api/pkg/drm"
	"github.com/breezy-desktop/xr-renderer/api/pkg/handoff"
)

type scriptedAcquirer struct {
	results []error
	calls   atomic.Int64
}

func (a *scriptedAcquirer) Acquire(context.Context) (*dmabuf.Buffer, error) {
	n := a.calls.Add(1) - 1
	if int(n) < len(a.results) && a.results[n] != nil {
		return nil, a.results[n]
	}
	return &dmabuf.Buffer{
		FD:            dmabuf.OwnWithCloser(int(n), func(int) error { return nil }),
		FramebufferID: 1,
	}, nil
}

func TestLoop_PublishesUntilStopped(t *testing.T) {
	source := &scriptedAcquirer{results: []error{
		nil,
		errors.New("output not found"),
		&drm.TransientError{Op: "PRIME_HANDLE_TO_FD(1)", Err: unix.EMFILE},
		nil,
	}}
	mailbox := handoff.New()
	defer mailbox.Close()

	var stop atomic.Bool
	loop := NewLoop(source, mailbox, 1000, stop.Load)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	require.Eventually(t, func() bool { return mailbox.Sequence() >= 5 }, 5*time.Second, time.Millisecond)
	stop.Store(true)
	require.NoError(t, <-done)

	stats := loop.Stats()
	assert.GreaterOrEqual(t, stats.Captured, uint64(5))
	assert.Equal(t, uint64(2), stats.Failures)
	assert.Equal(t, uint64(1), stats.Transient)
}

func TestLoop_FatalStops(t *testing.T) {
	fatal := fmt.Errorf("%w: %w", ErrFatal, drm.ErrNoDevice)
	source := &scriptedAcquirer{results: []error{nil, fatal}}
	mailbox := handoff.New()
	defer mailbox.Close()

	loop := NewLoop(source, mailbox, 1000, nil)
	err := loop.Run(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, uint64(1), mailbox.Sequence())
}

func TestLoop_ContextCancel(t *testing.T) {
	mailbox := handoff.New()
	defer mailbox.Close()

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop(&scriptedAcquirer{}, mailbox, 50, nil)

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}
