package dmabuf

import (
	"fmt"
	"time"
)

const (
	// FormatXRGB8888 is DRM_FORMAT_XRGB8888 ('XR24').
	FormatXRGB8888 uint32 = 0x34325258
	// FormatARGB8888 is DRM_FORMAT_ARGB8888 ('AR24').
	FormatARGB8888 uint32 = 0x34325241

	// ModifierLinear is DRM_FORMAT_MOD_LINEAR.
	ModifierLinear uint64 = 0
	// ModifierInvalid is DRM_FORMAT_MOD_INVALID, used when the exporter
	// can't tell.
	ModifierInvalid uint64 = 0x00ffffffffffffff
)

// Buffer is one exported compositor frame. Exactly one party owns FD at any
// time; whoever holds the Buffer last must Close it.
type Buffer struct {
	FD       *FD
	Width    uint32
	Height   uint32
	Format   uint32
	Stride   uint32
	Modifier uint64

	// FramebufferID is the compositor's buffer identity. It only changes when
	// the backing store is reallocated.
	FramebufferID uint32
	Device        string

	Sequence   uint64
	CapturedAt time.Time
}

// HasExplicitModifier reports whether the modifier has to be passed on import.
func (b *Buffer) HasExplicitModifier() bool {
	return b.Modifier != ModifierLinear && b.Modifier != ModifierInvalid
}

// Size is the byte size of the single plane.
func (b *Buffer) Size() int64 {
	return int64(b.Stride) * int64(b.Height)
}

// Close releases the buffer's descriptor. Safe to call on nil and more than
// once.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}
	return b.FD.Close()
}

func (b *Buffer) String() string {
	return fmt.Sprintf("fb=%d %dx%d fourcc=%s stride=%d modifier=%#x fd=%d",
		b.FramebufferID, b.Width, b.Height, FourCC(b.Format), b.Stride, b.Modifier, b.FD.Int())
}

// FourCC renders a DRM format code as its four characters.
func FourCC(format uint32) string {
	return string([]byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)})
}
