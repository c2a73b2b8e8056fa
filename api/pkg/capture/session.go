// Package capture exports the compositor's XR output as dma-bufs and feeds
// them to the render thread.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
	"github.com/breezy-desktop/xr-renderer/api/pkg/drm"
	"github.com/breezy-desktop/xr-renderer/api/pkg/system"
)

// ErrFatal marks failures that end the session: no device can serve the
// framebuffer, the process may not export it, or exports keep failing for
// reasons nobody recognises. The session refuses further work once it has
// returned one.
var ErrFatal = errors.New("capture session failed")

const (
	// maxResolveRaces bounds how often resolution restarts because the
	// framebuffer was replaced while we were looking for its device.
	maxResolveRaces = 3

	// maxExportFailures is how many exports in a row may fail with an
	// unclassified error before the session gives up.
	maxExportFailures = 100
)

// FramebufferResolver looks up the framebuffer id currently backing an output.
type FramebufferResolver interface {
	FramebufferID(output string) (uint32, error)
}

// Device is a DRM node that can look up and export framebuffers.
type Device interface {
	Path() string
	Framebuffer(fbID uint32) (drm.Framebuffer, error)
	Check(fbID uint32) error
	ExportHandle(handle uint32) (*dmabuf.FD, error)
	CloseHandle(handle uint32) error
	Close() error
}

// DeviceFinder opens the device node that owns fbID.
type DeviceFinder func(fbID uint32) (Device, error)

// FindDRMDevice is the DeviceFinder for real nodes under dir.
func FindDRMDevice(dir string) DeviceFinder {
	return func(fbID uint32) (Device, error) {
		dev, err := drm.FindDevice(dir, fbID)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// State is where a Session is in its resolve/export cycle.
type State int

const (
	StateUninitialized State = iota
	StateResolved
	StateExported
	StateInvalidated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResolved:
		return "resolved"
	case StateExported:
		return "exported"
	case StateInvalidated:
		return "invalidated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type SessionConfig struct {
	Output   string
	Resolver FramebufferResolver
	Finder   DeviceFinder

	// RetryAttempts and RetryDelay bound the backoff for transient device
	// errors within one Acquire call.
	RetryAttempts uint
	RetryDelay    time.Duration
}

// Session tracks one output's framebuffer across mode changes. It resolves
// the framebuffer to a device, exports it once and hands out duplicates of
// that export until the framebuffer goes away. A Session is used from one
// goroutine.
type Session struct {
	cfg SessionConfig
	id  string
	log zerolog.Logger

	state  State
	fbID   uint32
	dev    Device
	export *dmabuf.Buffer
	fatal  error

	invalidations  uint64
	exportFailures int
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Millisecond
	}
	id := system.GenerateUUID()
	return &Session{
		cfg: cfg,
		id:  id,
		log: log.With().Str("component", "capture").Str("session_id", id).Str("output", cfg.Output).Logger(),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return s.state
}

// Invalidations counts how often the exported framebuffer had to be
// re-resolved.
func (s *Session) Invalidations() uint64 {
	return s.invalidations
}

// Acquire returns the output's current frame. The returned buffer carries its
// own descriptor, which the caller owns.
//
// Errors wrapping ErrFatal end the session. Anything else (output not there
// yet, transient device trouble) is worth retrying on the next frame.
func (s *Session) Acquire(ctx context.Context) (*dmabuf.Buffer, error) {
	if s.fatal != nil {
		return nil, s.fatal
	}

	fbID, err := s.cfg.Resolver.FramebufferID(s.cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve framebuffer of %s: %w", s.cfg.Output, err)
	}

	if s.state == StateExported {
		if err := s.validate(fbID); err != nil {
			return nil, err
		}
	}

	if s.state != StateExported {
		if err := s.resolveAndExport(ctx, fbID); err != nil {
			return nil, err
		}
	}

	return s.frame()
}

// validate checks that the cached export still matches the output. Identity
// changes and vanished buffers invalidate the export; transient lookup
// failures are returned as they are.
func (s *Session) validate(fbID uint32) error {
	if fbID != s.fbID {
		s.invalidate(fmt.Sprintf("framebuffer changed from %d to %d", s.fbID, fbID))
		return nil
	}
	err := s.dev.Check(fbID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, drm.ErrNoAccess):
		return s.fail(err)
	case drm.IsTransient(err):
		return err
	default:
		s.invalidate(err.Error())
		return nil
	}
}

func (s *Session) invalidate(reason string) {
	s.log.Warn().
		Uint32("fb_id", s.fbID).
		Str("reason", reason).
		Msg("exported framebuffer invalidated, re-resolving")
	s.releaseExport()
	s.state = StateInvalidated
	s.invalidations++
}

func (s *Session) resolveAndExport(ctx context.Context, fbID uint32) error {
	for race := 0; ; race++ {
		err := s.resolve(fbID)
		if err == nil {
			break
		}
		if !errors.Is(err, drm.ErrNoDevice) {
			return err
		}

		// during a mode change the id we were given can be freed before we
		// find its device; only give up if the output still names it
		current, rerr := s.cfg.Resolver.FramebufferID(s.cfg.Output)
		if rerr != nil || current == fbID || race+1 >= maxResolveRaces {
			return s.fail(err)
		}
		s.log.Debug().Uint32("fb_id", fbID).Uint32("new_fb_id", current).Msg("framebuffer replaced during resolve")
		fbID = current
	}

	return s.exportCurrent(ctx)
}

// resolve finds the device owning fbID, preferring the one already open.
func (s *Session) resolve(fbID uint32) error {
	if s.dev != nil {
		if err := s.dev.Check(fbID); err == nil {
			s.fbID = fbID
			s.state = StateResolved
			return nil
		}
		s.closeDevice()
	}

	dev, err := s.cfg.Finder(fbID)
	if err != nil {
		return err
	}
	s.dev = dev
	s.fbID = fbID
	s.state = StateResolved
	s.log.Info().Uint32("fb_id", fbID).Str("device", dev.Path()).Msg("resolved framebuffer")
	return nil
}

func (s *Session) exportCurrent(ctx context.Context) error {
	retryOpts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.RetryIf(drm.IsTransient),
		retry.LastErrorOnly(true),
	}

	fb, err := retry.DoWithData(func() (drm.Framebuffer, error) {
		return s.dev.Framebuffer(s.fbID)
	}, retryOpts...)
	if err != nil {
		return s.exportFailed(fmt.Errorf("failed to look up framebuffer %d: %w", s.fbID, err))
	}

	fd, err := retry.DoWithData(func() (*dmabuf.FD, error) {
		return s.dev.ExportHandle(fb.Handle)
	}, retryOpts...)
	if fb.Handle != 0 {
		if cerr := s.dev.CloseHandle(fb.Handle); cerr != nil {
			s.log.Debug().Err(cerr).Uint32("handle", fb.Handle).Msg("failed to close GEM handle")
		}
	}
	if err != nil {
		return s.exportFailed(fmt.Errorf("failed to export framebuffer %d: %w", s.fbID, err))
	}

	if !fb.FormatReported {
		s.log.Debug().Uint32("fb_id", s.fbID).Msg("kernel did not report pixel format, assuming XRGB8888")
	}

	s.export = &dmabuf.Buffer{
		FD:            fd,
		Width:         fb.Width,
		Height:        fb.Height,
		Format:        fb.Format,
		Stride:        fb.Pitch,
		Modifier:      fb.Modifier,
		FramebufferID: s.fbID,
		Device:        s.dev.Path(),
	}
	s.state = StateExported
	s.exportFailures = 0
	s.log.Info().Str("buffer", s.export.String()).Msg("exported framebuffer")
	return nil
}

// exportFailed sorts a lookup or export error. Missing privileges end the
// session at once, vanished buffers invalidate it, transient errors pass
// through, and anything else is tolerated up to maxExportFailures in a row.
func (s *Session) exportFailed(err error) error {
	switch {
	case errors.Is(err, drm.ErrNoAccess):
		s.log.Error().Err(err).Msg("framebuffer export not permitted")
		return s.fail(err)
	case errors.Is(err, drm.ErrBufferGone):
		s.invalidate(err.Error())
	case drm.IsTransient(err):
	default:
		s.exportFailures++
		if s.exportFailures >= maxExportFailures {
			return s.fail(fmt.Errorf("giving up after %d failed exports: %w", s.exportFailures, err))
		}
		if s.exportFailures == 1 {
			s.log.Warn().Err(err).Msg("framebuffer export failed, retrying")
		}
	}
	return err
}

// frame hands out a duplicate of the cached export so the session keeps its
// own descriptor for the next frame.
func (s *Session) frame() (*dmabuf.Buffer, error) {
	fd, err := s.export.FD.Dup()
	if err != nil {
		return nil, &drm.TransientError{Op: "dup export", Err: err}
	}
	buf := *s.export
	buf.FD = fd
	buf.CapturedAt = time.Now()
	return &buf, nil
}

func (s *Session) fail(err error) error {
	s.fatal = fmt.Errorf("%w: %w", ErrFatal, err)
	s.state = StateFailed
	s.releaseExport()
	s.closeDevice()
	return s.fatal
}

func (s *Session) releaseExport() {
	if s.export == nil {
		return
	}
	if err := s.export.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close exported framebuffer")
	}
	s.export = nil
}

func (s *Session) closeDevice() {
	if s.dev == nil {
		return
	}
	if err := s.dev.Close(); err != nil {
		s.log.Warn().Err(err).Str("device", s.dev.Path()).Msg("failed to close device")
	}
	s.dev = nil
}

// Close releases the cached export and the device.
func (s *Session) Close() {
	s.releaseExport()
	s.closeDevice()
	if s.state != StateFailed {
		s.state = StateUninitialized
	}
}
