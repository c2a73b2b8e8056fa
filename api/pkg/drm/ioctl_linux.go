//go:build amd64 || arm64 || 386 || riscv64 || loong64

package drm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DRM ioctl numbers, in the generic Linux encoding:
//
//	_IOW(type, nr, size)   = 0x40000000 | (size << 16) | (type << 8) | nr
//	_IOWR(type, nr, size)  = 0xC0000000 | (size << 16) | (type << 8) | nr
//
// Sizes come from the Go structs, which match the kernel's layout wherever
// Go aligns uint64 like the C ABI does. 32-bit ARM aligns u64 to 8 in C but
// to 4 in Go, so it is left out along with the architectures that encode
// ioctls differently.
const (
	iocWrite     = 0x40000000
	iocReadWrite = 0xC0000000
	ioctlBase    = 'd'

	ioctlGemClose        = iocWrite | unsafe.Sizeof(drmGemClose{})<<16 | ioctlBase<<8 | 0x09
	ioctlPrimeHandleToFD = iocReadWrite | unsafe.Sizeof(drmPrimeHandle{})<<16 | ioctlBase<<8 | 0x2d
	ioctlModeGetFB       = iocReadWrite | unsafe.Sizeof(drmModeFbCmd{})<<16 | ioctlBase<<8 | 0xad
	ioctlModeGetFB2      = iocReadWrite | unsafe.Sizeof(drmModeFbCmd2{})<<16 | ioctlBase<<8 | 0xce
)

func ioctl(f *os.File, req uintptr, arg unsafe.Pointer) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(arg))
	return errno
}

// getFB looks up a framebuffer. The returned GEM handle is a new reference
// and must be released with gemClose.
func getFB(f *os.File, fbID uint32) (drmModeFbCmd, error) {
	req := drmModeFbCmd{FbID: fbID}
	if errno := ioctl(f, ioctlModeGetFB, unsafe.Pointer(&req)); errno != 0 {
		return req, classify(fmt.Sprintf("MODE_GETFB(%d)", fbID), errno)
	}
	return req, nil
}

// getFB2 is getFB with pixel format and modifiers. Kernels before 5.7 don't
// have it and fail with EINVAL or ENOTTY.
func getFB2(f *os.File, fbID uint32) (drmModeFbCmd2, error) {
	req := drmModeFbCmd2{FbID: fbID}
	if errno := ioctl(f, ioctlModeGetFB2, unsafe.Pointer(&req)); errno != 0 {
		return req, classify(fmt.Sprintf("MODE_GETFB2(%d)", fbID), errno)
	}
	return req, nil
}

// primeHandleToFD exports a GEM handle as a dma-buf. The caller owns the FD
// and must close it.
func primeHandleToFD(f *os.File, handle uint32) (int, error) {
	req := drmPrimeHandle{Handle: handle, Flags: primeFlags, FD: -1}
	if errno := ioctl(f, ioctlPrimeHandleToFD, unsafe.Pointer(&req)); errno != 0 {
		return -1, classify(fmt.Sprintf("PRIME_HANDLE_TO_FD(%d)", handle), errno)
	}
	return int(req.FD), nil
}

func gemClose(f *os.File, handle uint32) error {
	req := drmGemClose{Handle: handle}
	if errno := ioctl(f, ioctlGemClose, unsafe.Pointer(&req)); errno != 0 {
		return fmt.Errorf("GEM_CLOSE(%d): %w", handle, errno)
	}
	return nil
}
