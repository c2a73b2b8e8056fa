package drm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrBufferGone means the framebuffer id no longer names a buffer,
	// usually because the compositor reallocated it on a mode change.
	ErrBufferGone = errors.New("framebuffer no longer exists")

	// ErrNoDevice means no DRM node could look up the framebuffer.
	ErrNoDevice = errors.New("no DRM device owns framebuffer")

	// ErrNoAccess means the node answered but won't share the buffer with
	// this process. Retrying doesn't help until privileges change.
	ErrNoAccess = errors.New("no access to framebuffer")
)

// TransientError is a failure worth retrying after a short backoff: the
// device is busy or the process is out of descriptors.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v (transient)", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func classify(op string, errno unix.Errno) error {
	switch errno {
	case unix.ENOENT, unix.EINVAL:
		return fmt.Errorf("%s: %w: %w", op, ErrBufferGone, errno)
	case unix.EACCES, unix.EPERM:
		return fmt.Errorf("%s: %w: %w", op, ErrNoAccess, errno)
	case unix.EBUSY, unix.EAGAIN, unix.EINTR, unix.EMFILE, unix.ENFILE, unix.ENOMEM:
		return &TransientError{Op: op, Err: errno}
	default:
		return fmt.Errorf("%s: %w", op, errno)
	}
}
