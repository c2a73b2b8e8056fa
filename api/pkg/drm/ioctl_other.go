//go:build !(amd64 || arm64 || 386 || riscv64 || loong64)

package drm

import (
	"errors"
	"fmt"
	"os"
	"runtime"
)

var errUnsupportedArch = fmt.Errorf("DRM framebuffer export on %s: %w", runtime.GOARCH, errors.ErrUnsupported)

func getFB(*os.File, uint32) (drmModeFbCmd, error) {
	return drmModeFbCmd{}, errUnsupportedArch
}

func getFB2(*os.File, uint32) (drmModeFbCmd2, error) {
	return drmModeFbCmd2{}, errUnsupportedArch
}

func primeHandleToFD(*os.File, uint32) (int, error) {
	return -1, errUnsupportedArch
}

func gemClose(*os.File, uint32) error {
	return errUnsupportedArch
}
