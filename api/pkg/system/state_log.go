package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	stateDirName = "breezy_desktop"
	logFileName  = "renderer.log"
)

// StateDir is $XDG_STATE_HOME/breezy_desktop, or ~/.local/state/breezy_desktop
// when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, stateDirName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("neither XDG_STATE_HOME nor HOME is set")
	}
	return filepath.Join(home, ".local", "state", stateDirName), nil
}

func StateLogPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}

// OpenStateLog opens the renderer log for appending, creating its directory
// as needed.
func OpenStateLog() (*os.File, error) {
	path, err := StateLogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
