package gpu

import (
	"fmt"
	"strings"

	"github.com/ebitengine/purego"
)

const (
	eglSuccess         = 0x3000
	eglNone            = 0x3038
	eglAlphaSize       = 0x3021
	eglBlueSize        = 0x3022
	eglGreenSize       = 0x3023
	eglRedSize         = 0x3024
	eglSurfaceType     = 0x3033
	eglRenderableType  = 0x3040
	eglExtensions      = 0x3055
	eglHeight          = 0x3056
	eglWidth           = 0x3057
	eglOpenGLAPI       = 0x30A2
	eglPbufferBit      = 0x0001
	eglWindowBit       = 0x0004
	eglOpenGLBit       = 0x0008
	eglContextMajor    = 0x3098
	eglContextMinor    = 0x30FB
	eglContextProfile  = 0x30FD
	eglCoreProfileBit  = 0x0001
	eglLinuxDMABuf     = 0x3270
	eglLinuxDRMFourCC  = 0x3271
	eglPlane0FD        = 0x3272
	eglPlane0Offset    = 0x3273
	eglPlane0Pitch     = 0x3274
	eglPlane0ModLo     = 0x3443
	eglPlane0ModHi     = 0x3444
	eglDMABufImportExt = "EGL_EXT_image_dma_buf_import"
)

// egl holds the EGL entry points, bound at runtime with purego so the
// renderer builds without cgo.
type egl struct {
	lib uintptr

	GetDisplay           func(native uintptr) uintptr
	Initialize           func(dpy uintptr, major, minor *int32) uint32
	Terminate            func(dpy uintptr) uint32
	BindAPI              func(api uint32) uint32
	ChooseConfig         func(dpy uintptr, attribs *int32, configs *uintptr, size int32, num *int32) uint32
	CreateWindowSurface  func(dpy, config, win uintptr, attribs *int32) uintptr
	CreatePbufferSurface func(dpy, config uintptr, attribs *int32) uintptr
	CreateContext        func(dpy, config, share uintptr, attribs *int32) uintptr
	MakeCurrent          func(dpy, draw, read, ctx uintptr) uint32
	SwapBuffers          func(dpy, surface uintptr) uint32
	SwapInterval         func(dpy uintptr, interval int32) uint32
	DestroySurface       func(dpy, surface uintptr) uint32
	DestroyContext       func(dpy, ctx uintptr) uint32
	QueryString          func(dpy uintptr, name int32) string
	GetError             func() int32
	GetProcAddress       func(name string) uintptr

	CreateImageKHR  func(dpy, ctx uintptr, target uint32, buffer uintptr, attribs *int32) uintptr
	DestroyImageKHR func(dpy, image uintptr) uint32
}

func bindSymbol(lib uintptr, fptr any, name string) error {
	sym, err := purego.Dlsym(lib, name)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", name, err)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

func openLibrary(names ...string) (uintptr, error) {
	var lastErr error
	for _, name := range names {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return lib, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("failed to load any of %v: %w", names, lastErr)
}

func loadEGL() (*egl, error) {
	lib, err := openLibrary("libEGL.so.1", "libEGL.so")
	if err != nil {
		return nil, err
	}

	e := &egl{lib: lib}
	symbols := map[string]any{
		"eglGetDisplay":           &e.GetDisplay,
		"eglInitialize":           &e.Initialize,
		"eglTerminate":            &e.Terminate,
		"eglBindAPI":              &e.BindAPI,
		"eglChooseConfig":         &e.ChooseConfig,
		"eglCreateWindowSurface":  &e.CreateWindowSurface,
		"eglCreatePbufferSurface": &e.CreatePbufferSurface,
		"eglCreateContext":        &e.CreateContext,
		"eglMakeCurrent":          &e.MakeCurrent,
		"eglSwapBuffers":          &e.SwapBuffers,
		"eglSwapInterval":         &e.SwapInterval,
		"eglDestroySurface":       &e.DestroySurface,
		"eglDestroyContext":       &e.DestroyContext,
		"eglQueryString":          &e.QueryString,
		"eglGetError":             &e.GetError,
		"eglGetProcAddress":       &e.GetProcAddress,
	}
	for name, fptr := range symbols {
		if err := bindSymbol(lib, fptr, name); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// loadImageExtension binds the EGL_KHR_image entry points, which are only
// reachable through eglGetProcAddress.
func (e *egl) loadImageExtension() error {
	for name, fptr := range map[string]any{
		"eglCreateImageKHR":  &e.CreateImageKHR,
		"eglDestroyImageKHR": &e.DestroyImageKHR,
	} {
		addr := e.GetProcAddress(name)
		if addr == 0 {
			return fmt.Errorf("%s not available", name)
		}
		purego.RegisterFunc(fptr, addr)
	}
	return nil
}

func (e *egl) hasExtension(dpy uintptr, ext string) bool {
	for _, have := range strings.Fields(e.QueryString(dpy, eglExtensions)) {
		if have == ext {
			return true
		}
	}
	return false
}

func (e *egl) errorf(op string) error {
	return fmt.Errorf("%s failed: EGL error %#x", op, e.GetError())
}
