package dmabuf

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	mu     sync.Mutex
	closed []int
}

func (c *closeRecorder) close(fd int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, fd)
	return nil
}

func TestFD_CloseOnce(t *testing.T) {
	rec := &closeRecorder{}
	f := OwnWithCloser(42, rec.close)

	assert.True(t, f.Owned())
	assert.Equal(t, 42, f.Int())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, []int{42}, rec.closed)
	assert.False(t, f.Owned())
}

func TestFD_ConcurrentCloseClosesOnce(t *testing.T) {
	rec := &closeRecorder{}
	f := OwnWithCloser(7, rec.close)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, []int{7}, rec.closed)
}

func TestFD_Release(t *testing.T) {
	rec := &closeRecorder{}
	f := OwnWithCloser(9, rec.close)

	assert.Equal(t, 9, f.Release())
	assert.Equal(t, -1, f.Release())
	require.NoError(t, f.Close())
	assert.Empty(t, rec.closed)
}

func TestFD_ZeroAndNil(t *testing.T) {
	var zero FD
	assert.False(t, zero.Owned())
	assert.Equal(t, -1, zero.Release())
	require.NoError(t, zero.Close())

	var nilFD *FD
	assert.Equal(t, -1, nilFD.Int())
	require.NoError(t, nilFD.Close())

	var nilBuf *Buffer
	require.NoError(t, nilBuf.Close())
}

func TestFD_Dup(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "dup")
	require.NoError(t, err)
	defer file.Close()

	orig, err := Own(int(file.Fd())).Dup()
	require.NoError(t, err)
	defer orig.Close()

	dup, err := orig.Dup()
	require.NoError(t, err)
	assert.NotEqual(t, orig.Int(), dup.Int())
	require.NoError(t, dup.Close())
	assert.True(t, orig.Owned())

	_, err = dup.Dup()
	require.Error(t, err)
}

func TestBuffer(t *testing.T) {
	b := &Buffer{
		FD:            OwnWithCloser(3, func(int) error { return nil }),
		Width:         1920,
		Height:        1080,
		Format:        FormatXRGB8888,
		Stride:        7680,
		FramebufferID: 77,
	}
	assert.Equal(t, "XR24", FourCC(b.Format))
	assert.Equal(t, int64(7680*1080), b.Size())
	assert.False(t, b.HasExplicitModifier())
	assert.Contains(t, b.String(), "fb=77")

	b.Modifier = ModifierInvalid
	assert.False(t, b.HasExplicitModifier())
	b.Modifier = 0x0100000000000002
	assert.True(t, b.HasExplicitModifier())
}
