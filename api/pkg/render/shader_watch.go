package render

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ShaderWatcher flags the shader file as changed when it is rewritten. The
// directory is watched so editors that save by rename are seen too.
type ShaderWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changed atomic.Bool
	done    chan struct{}
}

func NewShaderWatcher(path string) (*ShaderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &ShaderWatcher{path: filepath.Clean(path), watcher: watcher, done: make(chan struct{})}, nil
}

// Run consumes watcher events until ctx is done or the watcher is closed.
// Call it once.
func (w *ShaderWatcher) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				log.Debug().Str("path", w.path).Str("op", event.Op.String()).Msg("shader changed")
				w.changed.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("shader watcher error")
		}
	}
}

// Changed reports and clears a pending change.
func (w *ShaderWatcher) Changed() bool {
	if w == nil {
		return false
	}
	return w.changed.Swap(false)
}

// Done is closed once Run has returned.
func (w *ShaderWatcher) Done() <-chan struct{} {
	return w.done
}

func (w *ShaderWatcher) Path() string {
	return w.path
}

func (w *ShaderWatcher) Close() error {
	return w.watcher.Close()
}
