package gpu

import (
	"fmt"
)

// Backend selects the window system the device presents through.
type Backend string

const (
	// BackendX11 renders into an X11 window through an EGL window surface.
	BackendX11 Backend = "x11"
	// BackendHeadless renders into an EGL pbuffer on the default display,
	// for benchmarking and machines without the glasses attached.
	BackendHeadless Backend = "headless"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendX11, BackendHeadless:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("unknown backend %q (want %s or %s)", s, BackendX11, BackendHeadless)
	}
}

// windowSystem is what differs between backends: where the EGL display comes
// from and what kind of surface gets presented.
type windowSystem interface {
	kind() Backend
	nativeDisplay() uintptr
	surfaceBit() int32
	createSurface(e *egl, dpy, config uintptr, width, height int) uintptr
	destroy()
}

// pbuffer is the headless window system.
type pbuffer struct{}

func (pbuffer) kind() Backend {
	return BackendHeadless
}

func (pbuffer) nativeDisplay() uintptr {
	return 0 // EGL_DEFAULT_DISPLAY
}

func (pbuffer) surfaceBit() int32 {
	return eglPbufferBit
}

func (pbuffer) createSurface(e *egl, dpy, config uintptr, width, height int) uintptr {
	attribs := []int32{eglWidth, int32(width), eglHeight, int32(height), eglNone}
	return e.CreatePbufferSurface(dpy, config, &attribs[0])
}

func (pbuffer) destroy() {}

// Config describes the device to create.
type Config struct {
	Backend Backend
	Display string
	Title   string
	Width   int
	Height  int

	// RefreshRate is the glasses refresh rate in Hz; frametime uniforms are
	// derived from it.
	RefreshRate float64
}

func newWindowSystem(cfg Config) (windowSystem, error) {
	switch cfg.Backend {
	case BackendX11, "":
		return newX11Window(cfg.Display, cfg.Title, cfg.Width, cfg.Height)
	case BackendHeadless:
		return pbuffer{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
