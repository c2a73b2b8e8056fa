package drm

import "golang.org/x/sys/unix"

const (
	// drmModeFbModifiers is set in drm_mode_fb_cmd2.flags when modifier[] is valid.
	drmModeFbModifiers = 1 << 1

	// DRM_CLOEXEC and DRM_RDWR alias the open(2) flags.
	primeFlags = unix.O_CLOEXEC | unix.O_RDWR
)

// drmGemClose corresponds to struct drm_gem_close.
type drmGemClose struct {
	Handle uint32
	Pad    uint32
}

// drmPrimeHandle corresponds to struct drm_prime_handle.
type drmPrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

// drmModeFbCmd corresponds to struct drm_mode_fb_cmd.
type drmModeFbCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

// drmModeFbCmd2 corresponds to struct drm_mode_fb_cmd2.
type drmModeFbCmd2 struct {
	FbID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	Modifier    [4]uint64
}
