package drm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNodeCandidates_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"card1", "renderD129", "card0", "by-path", "renderD128"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	nodes, err := NodeCandidates(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "renderD128"),
		filepath.Join(dir, "renderD129"),
		filepath.Join(dir, "card0"),
		filepath.Join(dir, "card1"),
	}, nodes)
}

func TestNodeCandidates_MissingDir(t *testing.T) {
	_, err := NodeCandidates(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	_, err = FindDevice(filepath.Join(t.TempDir(), "nope"), 1)
	require.ErrorIs(t, err, ErrNoDevice)
}

type fakeNode struct {
	path   string
	owns   map[uint32]bool
	closed bool
}

func (n *fakeNode) Check(fbID uint32) error {
	if n.owns[fbID] {
		return nil
	}
	return classify("MODE_GETFB", unix.ENOENT)
}

func (n *fakeNode) Close() error {
	n.closed = true
	return nil
}

func TestFindNode(t *testing.T) {
	opened := map[string]*fakeNode{}
	open := func(path string) (framebufferNode, error) {
		if path == "/dev/dri/renderD128" {
			return nil, errors.New("permission denied")
		}
		n := &fakeNode{path: path, owns: map[uint32]bool{}}
		if path == "/dev/dri/card0" {
			n.owns[42] = true
		}
		opened[path] = n
		return n, nil
	}

	nodes := []string{"/dev/dri/renderD128", "/dev/dri/renderD129", "/dev/dri/card0", "/dev/dri/card1"}

	node, err := findNode(nodes, 42, open)
	require.NoError(t, err)
	assert.Equal(t, "/dev/dri/card0", node.(*fakeNode).path)
	assert.True(t, opened["/dev/dri/renderD129"].closed)
	assert.False(t, opened["/dev/dri/card0"].closed)
	assert.NotContains(t, opened, "/dev/dri/card1")

	_, err = findNode(nodes, 7, open)
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = findNode(nil, 7, open)
	require.ErrorIs(t, err, ErrNoDevice)
}
