// Package datadir computes the layout of the archiver's data directory.
package datadir

import (
	"os"
	"path/filepath"
)

// Base returns ~/.teledoc, or the TELEDOC_DATA_DIR override.
func Base() string {
	if dir := os.Getenv("TELEDOC_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".teledoc")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(Base(), "config.toml")
}

// StatePath returns the state database path.
func StatePath() string {
	return filepath.Join(Base(), "state.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(Base(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "teledocd.log")
}

// EnsureDirs creates the data directory tree with owner-only permissions.
func EnsureDirs() error {
	for _, d := range []string{Base(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
