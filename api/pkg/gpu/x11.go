package gpu

import (
	"fmt"
)

// xlib is the handful of Xlib calls needed to put an EGL window on screen.
type xlib struct {
	OpenDisplay        func(name string) uintptr
	CloseDisplay       func(dpy uintptr) int32
	DefaultScreen      func(dpy uintptr) int32
	RootWindow         func(dpy uintptr, screen int32) uintptr
	CreateSimpleWindow func(dpy, parent uintptr, x, y int32, w, h, borderWidth uint32, border, background uint64) uintptr
	StoreName          func(dpy, win uintptr, name string) int32
	MapWindow          func(dpy, win uintptr) int32
	DestroyWindow      func(dpy, win uintptr) int32
	Flush              func(dpy uintptr) int32
}

func loadXlib() (*xlib, error) {
	lib, err := openLibrary("libX11.so.6", "libX11.so")
	if err != nil {
		return nil, err
	}
	x := &xlib{}
	for name, fptr := range map[string]any{
		"XOpenDisplay":        &x.OpenDisplay,
		"XCloseDisplay":       &x.CloseDisplay,
		"XDefaultScreen":      &x.DefaultScreen,
		"XRootWindow":         &x.RootWindow,
		"XCreateSimpleWindow": &x.CreateSimpleWindow,
		"XStoreName":          &x.StoreName,
		"XMapWindow":          &x.MapWindow,
		"XDestroyWindow":      &x.DestroyWindow,
		"XFlush":              &x.Flush,
	} {
		if err := bindSymbol(lib, fptr, name); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// x11Window presents into a plain X11 window placed on the glasses output.
type x11Window struct {
	x       *xlib
	display uintptr
	window  uintptr
}

func newX11Window(displayName, title string, width, height int) (*x11Window, error) {
	x, err := loadXlib()
	if err != nil {
		return nil, err
	}
	dpy := x.OpenDisplay(displayName)
	if dpy == 0 {
		return nil, fmt.Errorf("failed to open X display %q", displayName)
	}
	root := x.RootWindow(dpy, x.DefaultScreen(dpy))
	win := x.CreateSimpleWindow(dpy, root, 0, 0, uint32(width), uint32(height), 0, 0, 0)
	if win == 0 {
		x.CloseDisplay(dpy)
		return nil, fmt.Errorf("failed to create %dx%d window", width, height)
	}
	x.StoreName(dpy, win, title)
	x.MapWindow(dpy, win)
	x.Flush(dpy)

	return &x11Window{x: x, display: dpy, window: win}, nil
}

func (w *x11Window) kind() Backend {
	return BackendX11
}

func (w *x11Window) nativeDisplay() uintptr {
	return w.display
}

func (w *x11Window) surfaceBit() int32 {
	return eglWindowBit
}

func (w *x11Window) createSurface(e *egl, dpy, config uintptr, _, _ int) uintptr {
	attribs := []int32{eglNone}
	return e.CreateWindowSurface(dpy, config, w.window, &attribs[0])
}

func (w *x11Window) destroy() {
	if w.window != 0 {
		w.x.DestroyWindow(w.display, w.window)
		w.window = 0
	}
	if w.display != 0 {
		w.x.CloseDisplay(w.display)
		w.display = 0
	}
}
