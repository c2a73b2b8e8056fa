package drm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultDir is where DRM device nodes live.
const DefaultDir = "/dev/dri"

// Node prefixes in probe order: render nodes are less privileged, so they
// are tried before primary nodes.
var nodePrefixes = []string{"renderD", "card"}

// NodeCandidates lists the DRM nodes in dir in probe order.
func NodeCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var nodes []string
	for _, prefix := range nodePrefixes {
		var matched []string
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), prefix) {
				matched = append(matched, filepath.Join(dir, e.Name()))
			}
		}
		sort.Strings(matched)
		nodes = append(nodes, matched...)
	}
	return nodes, nil
}

type framebufferNode interface {
	Check(fbID uint32) error
	Close() error
}

// FindDevice returns the first node in dir on which fbID can be looked up.
func FindDevice(dir string, fbID uint32) (*Device, error) {
	nodes, err := NodeCandidates(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}

	node, err := findNode(nodes, fbID, func(path string) (framebufferNode, error) {
		return Open(path)
	})
	if err != nil {
		return nil, err
	}
	return node.(*Device), nil
}

func findNode(nodes []string, fbID uint32, open func(string) (framebufferNode, error)) (framebufferNode, error) {
	var errs []error
	for _, path := range nodes {
		node, err := open(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := node.Check(fbID); err != nil {
			log.Debug().Err(err).Str("node", path).Uint32("fb_id", fbID).Msg("framebuffer not found on node")
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			_ = node.Close()
			continue
		}
		log.Debug().Str("node", path).Uint32("fb_id", fbID).Msg("framebuffer found")
		return node, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w %d: no nodes to probe", ErrNoDevice, fbID)
	}
	return nil, fmt.Errorf("%w %d: %w", ErrNoDevice, fbID, errors.Join(errs...))
}
