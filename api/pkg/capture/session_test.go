package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
	"github.com/breezy-desktop/xr-renderer/api/pkg/drm"
)

type fakeResolver struct {
	mu  sync.Mutex
	ids []uint32
	err error
}

// FramebufferID returns the queued ids in order and repeats the last one.
func (r *fakeResolver) FramebufferID(string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	id := r.ids[0]
	if len(r.ids) > 1 {
		r.ids = r.ids[1:]
	}
	return id, nil
}

type fakeDevice struct {
	t              *testing.T
	path           string
	fbs            map[uint32]bool
	framebufferErr []error
	exportErr      error
	exports        []*dmabuf.FD
	closedHandles  []uint32
	closed         bool
}

func newFakeDevice(t *testing.T, ids ...uint32) *fakeDevice {
	d := &fakeDevice{t: t, path: "/dev/dri/renderD128", fbs: map[uint32]bool{}}
	for _, id := range ids {
		d.fbs[id] = true
	}
	return d
}

func (d *fakeDevice) Path() string { return d.path }

func (d *fakeDevice) Check(fbID uint32) error {
	if !d.fbs[fbID] {
		return fmt.Errorf("MODE_GETFB(%d): %w", fbID, drm.ErrBufferGone)
	}
	return nil
}

func (d *fakeDevice) Framebuffer(fbID uint32) (drm.Framebuffer, error) {
	if len(d.framebufferErr) > 0 {
		err := d.framebufferErr[0]
		d.framebufferErr = d.framebufferErr[1:]
		return drm.Framebuffer{}, err
	}
	if err := d.Check(fbID); err != nil {
		return drm.Framebuffer{}, err
	}
	return drm.Framebuffer{
		ID:     fbID,
		Width:  1920,
		Height: 1080,
		Pitch:  7680,
		Format: dmabuf.FormatXRGB8888,
		Handle: 100 + fbID,
	}, nil
}

func (d *fakeDevice) ExportHandle(uint32) (*dmabuf.FD, error) {
	if d.exportErr != nil {
		return nil, d.exportErr
	}
	fd, err := unix.Open(os.DevNull, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.NoError(d.t, err)
	f := dmabuf.Own(fd)
	d.exports = append(d.exports, f)
	return f, nil
}

func (d *fakeDevice) CloseHandle(handle uint32) error {
	d.closedHandles = append(d.closedHandles, handle)
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func finderFor(devs ...*fakeDevice) DeviceFinder {
	return func(fbID uint32) (Device, error) {
		for _, d := range devs {
			if d.fbs[fbID] {
				return d, nil
			}
		}
		return nil, fmt.Errorf("%w %d", drm.ErrNoDevice, fbID)
	}
}

func newTestSession(resolver FramebufferResolver, finder DeviceFinder) *Session {
	return NewSession(SessionConfig{
		Output:        "XR-0",
		Resolver:      resolver,
		Finder:        finder,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
}

func TestSession_ExportsOnceAndDuplicates(t *testing.T) {
	dev := newFakeDevice(t, 7)
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()
	assert.Equal(t, StateUninitialized, s.State())
	assert.NotEmpty(t, s.ID())

	ctx := context.Background()
	first, err := s.Acquire(ctx)
	require.NoError(t, err)
	second, err := s.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateExported, s.State())
	require.Len(t, dev.exports, 1)
	assert.Equal(t, []uint32{107}, dev.closedHandles)

	assert.Equal(t, uint32(7), first.FramebufferID)
	assert.Equal(t, uint32(1920), first.Width)
	assert.Equal(t, uint32(7680), first.Stride)
	assert.Equal(t, dmabuf.FormatXRGB8888, first.Format)
	assert.NotEqual(t, dev.exports[0].Int(), first.FD.Int())
	assert.NotEqual(t, first.FD.Int(), second.FD.Int())

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
	assert.True(t, dev.exports[0].Owned())

	s.Close()
	assert.False(t, dev.exports[0].Owned())
	assert.True(t, dev.closed)
}

func TestSession_IdentityChangeRecovers(t *testing.T) {
	dev := newFakeDevice(t, 7, 8)
	s := newTestSession(&fakeResolver{ids: []uint32{7, 8}}, finderFor(dev))
	defer s.Close()

	ctx := context.Background()
	first, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer first.Close()

	second, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, StateExported, s.State())
	assert.Equal(t, uint64(1), s.Invalidations())
	assert.Equal(t, uint32(8), second.FramebufferID)

	require.Len(t, dev.exports, 2)
	assert.False(t, dev.exports[0].Owned(), "stale export leaked")
	assert.True(t, dev.exports[1].Owned())
	// same device kept across the mode change
	assert.False(t, dev.closed)
}

func TestSession_BufferGoneMovesToNewDevice(t *testing.T) {
	oldDev := newFakeDevice(t, 7)
	newDev := newFakeDevice(t, 9)
	newDev.path = "/dev/dri/card1"
	resolver := &fakeResolver{ids: []uint32{7, 9}}
	s := newTestSession(resolver, finderFor(oldDev, newDev))
	defer s.Close()

	ctx := context.Background()
	buf, err := s.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	buf, err = s.Acquire(ctx)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, "/dev/dri/card1", buf.Device)
	assert.True(t, oldDev.closed)
	assert.False(t, oldDev.exports[0].Owned())
	assert.Equal(t, uint64(1), s.Invalidations())
}

func TestSession_BufferGoneWithoutNewIdentity(t *testing.T) {
	dev := newFakeDevice(t, 7)
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()

	ctx := context.Background()
	buf, err := s.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	// compositor freed the buffer but the output still names it
	delete(dev.fbs, 7)

	_, err = s.Acquire(ctx)
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorIs(t, err, drm.ErrNoDevice)
	assert.Equal(t, StateFailed, s.State())
	assert.False(t, dev.exports[0].Owned())
}

func TestSession_NoDeviceIsFatal(t *testing.T) {
	resolver := &fakeResolver{ids: []uint32{7}}
	s := newTestSession(resolver, finderFor())
	defer s.Close()

	_, err := s.Acquire(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, StateFailed, s.State())

	// the session stays failed without touching the display server again
	resolver.err = errors.New("must not be called")
	_, err = s.Acquire(context.Background())
	require.ErrorIs(t, err, ErrFatal)
}

func TestSession_ResolverErrorIsRoutine(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("output not found")}
	s := newTestSession(resolver, finderFor(newFakeDevice(t, 7)))
	defer s.Close()

	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFatal))
	assert.Equal(t, StateUninitialized, s.State())

	resolver.err = nil
	resolver.ids = []uint32{7}
	buf, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, buf.Close())
}

func TestSession_TransientLookupIsRetried(t *testing.T) {
	dev := newFakeDevice(t, 7)
	dev.framebufferErr = []error{&drm.TransientError{Op: "MODE_GETFB2(7)", Err: unix.EBUSY}}
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()

	buf, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	assert.Equal(t, StateExported, s.State())
}

func TestSession_TransientLookupExhausted(t *testing.T) {
	dev := newFakeDevice(t, 7)
	busy := &drm.TransientError{Op: "MODE_GETFB2(7)", Err: unix.EBUSY}
	dev.framebufferErr = []error{busy, busy, busy}
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()

	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, drm.IsTransient(err))
	assert.False(t, errors.Is(err, ErrFatal))

	buf, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, buf.Close())
}

func TestSession_AccessDeniedIsFatal(t *testing.T) {
	dev := newFakeDevice(t, 7)
	dev.framebufferErr = []error{fmt.Errorf("MODE_GETFB2(7): %w: %w", drm.ErrNoAccess, unix.EACCES)}
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()

	_, err := s.Acquire(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorIs(t, err, drm.ErrNoAccess)
	require.ErrorIs(t, err, unix.EACCES)
	assert.Equal(t, StateFailed, s.State())
	assert.True(t, dev.closed)

	_, err = s.Acquire(context.Background())
	require.ErrorIs(t, err, ErrFatal)
}

func TestSession_MissingHandleIsFatal(t *testing.T) {
	dev := newFakeDevice(t, 7)
	dev.exportErr = fmt.Errorf("export on %s: %w: lookup returned no handle", dev.path, drm.ErrNoAccess)
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()

	_, err := s.Acquire(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorIs(t, err, drm.ErrNoAccess)
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, []uint32{107}, dev.closedHandles)
}

func TestSession_RepeatedExportFailuresBecomeFatal(t *testing.T) {
	dev := newFakeDevice(t, 7)
	for i := 0; i < maxExportFailures; i++ {
		dev.framebufferErr = append(dev.framebufferErr, fmt.Errorf("MODE_GETFB2(7): %w", unix.ENODEV))
	}
	s := newTestSession(&fakeResolver{ids: []uint32{7}}, finderFor(dev))
	defer s.Close()

	for i := 1; i < maxExportFailures; i++ {
		_, err := s.Acquire(context.Background())
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrFatal), "attempt %d", i)
	}

	_, err := s.Acquire(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorIs(t, err, unix.ENODEV)
	assert.Equal(t, StateFailed, s.State())
}

func TestSession_SuccessResetsExportFailures(t *testing.T) {
	dev := newFakeDevice(t, 7, 8)
	for i := 0; i < maxExportFailures-1; i++ {
		dev.framebufferErr = append(dev.framebufferErr, fmt.Errorf("MODE_GETFB2(7): %w", unix.ENODEV))
	}
	resolver := &fakeResolver{ids: []uint32{7}}
	s := newTestSession(resolver, finderFor(dev))
	defer s.Close()

	for i := 0; i < maxExportFailures-1; i++ {
		_, err := s.Acquire(context.Background())
		require.Error(t, err)
	}
	buf, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	// a fresh failure after a good export starts counting from zero
	resolver.ids = []uint32{8}
	dev.framebufferErr = []error{fmt.Errorf("MODE_GETFB2(8): %w", unix.ENODEV)}
	_, err = s.Acquire(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFatal))
	assert.Equal(t, StateResolved, s.State())
}
