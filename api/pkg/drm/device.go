// Package drm looks up compositor framebuffers on DRM device nodes and
// exports them as dma-bufs.
package drm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/breezy-desktop/xr-renderer/api/pkg/dmabuf"
)

// Framebuffer is the metadata of one framebuffer plus a GEM handle
// referencing its storage. Release the handle with Device.CloseHandle.
type Framebuffer struct {
	ID       uint32
	Width    uint32
	Height   uint32
	Pitch    uint32
	Format   uint32
	Modifier uint64
	Handle   uint32

	// FormatReported is false when the kernel only answered the legacy
	// GETFB and Format/Modifier are the XRGB8888/linear fallback.
	FormatReported bool
}

// Device is an open DRM node.
type Device struct {
	path     string
	f        *os.File
	noGetFB2 bool
}

// Open opens a DRM node read-write. It does not take DRM master.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{path: path, f: f}, nil
}

func (d *Device) Path() string {
	return d.path
}

// Framebuffer looks up fbID. GETFB2 is tried first for the real format and
// modifier; without it the buffer is assumed to be linear XRGB8888.
func (d *Device) Framebuffer(fbID uint32) (Framebuffer, error) {
	if !d.noGetFB2 {
		fb2, err := getFB2(d.f, fbID)
		if err == nil {
			fb := Framebuffer{
				ID:             fbID,
				Width:          fb2.Width,
				Height:         fb2.Height,
				Pitch:          fb2.Pitches[0],
				Format:         fb2.PixelFormat,
				Modifier:       dmabuf.ModifierInvalid,
				Handle:         fb2.Handles[0],
				FormatReported: true,
			}
			if fb2.Flags&drmModeFbModifiers != 0 {
				fb.Modifier = fb2.Modifier[0]
			}
			d.closeExtraHandles(fb2)
			return fb, nil
		}
		var errno unix.Errno
		if errors.As(err, &errno) && errno == unix.ENOTTY {
			d.noGetFB2 = true
		}
		// EINVAL is ambiguous between "no GETFB2" and "no such fb", so let
		// GETFB decide
	}

	legacy, err := getFB(d.f, fbID)
	if err != nil {
		return Framebuffer{}, err
	}
	return Framebuffer{
		ID:       fbID,
		Width:    legacy.Width,
		Height:   legacy.Height,
		Pitch:    legacy.Pitch,
		Format:   dmabuf.FormatXRGB8888,
		Modifier: dmabuf.ModifierLinear,
		Handle:   legacy.Handle,
	}, nil
}

// closeExtraHandles drops the GEM references GETFB2 took for planes 1-3.
func (d *Device) closeExtraHandles(fb2 drmModeFbCmd2) {
	for i := 1; i < len(fb2.Handles); i++ {
		h := fb2.Handles[i]
		if h == 0 || h == fb2.Handles[0] {
			continue
		}
		_ = gemClose(d.f, h)
	}
}

// Check reports whether fbID still exists, releasing the handle the lookup
// took.
func (d *Device) Check(fbID uint32) error {
	fb, err := getFB(d.f, fbID)
	if err != nil {
		return err
	}
	if fb.Handle != 0 {
		return d.CloseHandle(fb.Handle)
	}
	return nil
}

// ExportHandle exports a GEM handle as a dma-buf. The caller owns the FD.
func (d *Device) ExportHandle(handle uint32) (*dmabuf.FD, error) {
	if handle == 0 {
		return nil, fmt.Errorf("export on %s: %w: lookup returned no handle (missing CAP_SYS_ADMIN or DRM master?)", d.path, ErrNoAccess)
	}
	fd, err := primeHandleToFD(d.f, handle)
	if err != nil {
		return nil, err
	}
	return dmabuf.Own(fd), nil
}

func (d *Device) CloseHandle(handle uint32) error {
	return gemClose(d.f, handle)
}

func (d *Device) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
