// Package handoff passes the newest captured frame from the capture thread to
// the render thread without queueing.
package handoff

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
)

// Stats is a snapshot of mailbox counters.
type Stats struct {
	Published uint64
	Consumed  uint64
	// Dropped counts frames overwritten before the render side took them.
	Dropped uint64
}

// Mailbox is a single-slot exchange. Publish never blocks: it replaces
// whatever is in the slot and releases the displaced buffer. Consume empties
// the slot and hands ownership of the buffer to the caller.
type Mailbox struct {
	slot   atomic.Pointer[dmabuf.Buffer]
	closed atomic.Bool

	sequence      atomic.Uint64
	lastPublished atomic.Int64 // unix nanos

	consumed atomic.Uint64
	dropped  atomic.Uint64
}

func New() *Mailbox {
	return &Mailbox{}
}

// Publish stores buf as the newest frame. The mailbox owns buf from here on;
// the caller must not touch its descriptor again.
func (m *Mailbox) Publish(buf *dmabuf.Buffer) {
	if buf == nil {
		return
	}
	if m.closed.Load() {
		_ = buf.Close()
		return
	}

	buf.Sequence = m.sequence.Add(1)
	now := time.Now()
	if buf.CapturedAt.IsZero() {
		buf.CapturedAt = now
	}
	m.lastPublished.Store(now.UnixNano())

	if old := m.slot.Swap(buf); old != nil {
		m.dropped.Add(1)
		if err := old.Close(); err != nil {
			log.Warn().Err(err).Uint64("sequence", old.Sequence).Msg("failed to release dropped frame")
		}
	}

	// Close may have drained the slot between the check above and the swap
	if m.closed.Load() {
		m.drain()
	}
}

// Consume takes the newest unconsumed frame, if any. The caller owns it and
// must Close it.
func (m *Mailbox) Consume() (*dmabuf.Buffer, bool) {
	buf := m.slot.Swap(nil)
	if buf == nil {
		return nil, false
	}
	m.consumed.Add(1)
	return buf, true
}

// Sequence is the number of frames published so far. It only grows, so the
// render side can compare it with the last sequence it saw.
func (m *Mailbox) Sequence() uint64 {
	return m.sequence.Load()
}

// LastPublished is when the newest frame was published, or the zero time.
func (m *Mailbox) LastPublished() time.Time {
	ns := m.lastPublished.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (m *Mailbox) Stats() Stats {
	return Stats{
		Published: m.sequence.Load(),
		Consumed:  m.consumed.Load(),
		Dropped:   m.dropped.Load(),
	}
}

// Close releases any unconsumed frame. Frames published afterwards are
// released immediately.
func (m *Mailbox) Close() {
	m.closed.Store(true)
	m.drain()
}

func (m *Mailbox) drain() {
	if buf := m.slot.Swap(nil); buf != nil {
		_ = buf.Close()
	}
}
