// Package dmabuf describes exported GPU buffers and the file descriptors that
// keep them alive.
package dmabuf

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const released = -1

// FD is an optionally-owned file descriptor. Close only closes a descriptor
// the FD still owns, and only once; Release hands ownership to the caller.
// The zero value owns nothing.
type FD struct {
	fd     atomic.Int64
	closer func(int) error
}

// Own takes ownership of fd.
func Own(fd int) *FD {
	return OwnWithCloser(fd, unix.Close)
}

// OwnWithCloser takes ownership of fd and closes it with closer.
func OwnWithCloser(fd int, closer func(int) error) *FD {
	f := &FD{closer: closer}
	f.fd.Store(int64(fd))
	return f
}

// Int returns the raw descriptor, or -1 when nothing is owned. The FD keeps
// ownership.
func (f *FD) Int() int {
	if f == nil {
		return released
	}
	v := f.fd.Load()
	if v == 0 && f.closer == nil {
		return released
	}
	return int(v)
}

// Owned reports whether the FD still holds a descriptor.
func (f *FD) Owned() bool {
	return f.Int() >= 0
}

// Release gives up ownership without closing and returns the raw descriptor.
// It returns -1 if the descriptor was already released or closed.
func (f *FD) Release() int {
	if f == nil || f.closer == nil {
		return released
	}
	return int(f.fd.Swap(released))
}

// Dup returns a new FD owning a close-on-exec duplicate of the descriptor.
func (f *FD) Dup() (*FD, error) {
	fd := f.Int()
	if fd < 0 {
		return nil, fmt.Errorf("dup: descriptor not owned")
	}
	nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("dup fd %d: %w", fd, err)
	}
	return OwnWithCloser(nfd, f.closer), nil
}

// Close closes the descriptor if it is still owned. Calling it again, or on a
// released FD, is a no-op.
func (f *FD) Close() error {
	fd := f.Release()
	if fd < 0 {
		return nil
	}
	if err := f.closer(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}
	return nil
}
