package imu

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

func segmentReady(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() >= LayoutSize
}

// WaitForSegment blocks until the segment at path exists and is large enough
// to map, or ctx is done. It is for starting the renderer before the driver
// has created its segment.
func WaitForSegment(ctx context.Context, path string) error {
	if segmentReady(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// the segment may have appeared between the first check and Add
	if segmentReady(path) {
		return nil
	}

	log.Info().Str("path", path).Msg("waiting for IMU driver to create segment")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			// shm segments are created empty and sized afterwards
			if filepath.Clean(event.Name) == filepath.Clean(path) && segmentReady(path) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			log.Warn().Err(err).Msg("segment watcher error")
		}
	}
}
