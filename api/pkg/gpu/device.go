// Package gpu draws the warp pass. It imports dma-bufs as textures, runs the
// warp shader over a fullscreen quad and presents to a window or an offscreen
// surface.
package gpu

import (
	"errors"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
)

//go:generate mockgen -source $GOFILE -destination device_mocks.go -package $GOPACKAGE

var (
	ErrShaderNotFound  = errors.New("shader not found")
	ErrShaderNotLoaded = errors.New("shader not loaded")
)

// Image is a dma-buf imported as a sampleable texture. Only the import is
// local; the memory behind it belongs to the compositor.
type Image struct {
	Texture uint32
	handle  uintptr

	// FramebufferID is the identity of the buffer the image was imported from.
	FramebufferID uint32
	Width         uint32
	Height        uint32
}

// Valid reports whether the image refers to a live import.
func (i Image) Valid() bool {
	return i.Texture != 0
}

// Device owns a graphics context. Every method must be called from the
// goroutine that created it, with that goroutine locked to its OS thread.
type Device interface {
	// LoadShader compiles and links the fragment shader at path. On failure
	// the previously loaded program, if any, stays in use.
	LoadShader(path string) error
	ShaderLoaded() bool

	// ImportBuffer imports buf without taking ownership of its descriptor.
	ImportBuffer(buf *dmabuf.Buffer) (Image, error)
	ReleaseImage(img Image)

	Draw(img Image, uniforms UniformSet) error
	Present() error

	// RefreshRate is the presentation rate in Hz.
	RefreshRate() float64
	Close() error
}
