package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the directory name used below the platform data directory.
const appName = "dres"

// Paths locates the configuration and credentials files inside one
// application data directory.
type Paths struct {
	// Dir is the application data directory.
	Dir string
}

// NewPaths returns Paths rooted at dir. An empty dir resolves to
// DefaultDataDir().
func NewPaths(dir string) Paths {
	if dir == "" {
		dir = DefaultDataDir()
	}
	return Paths{Dir: dir}
}

// ConfigPath returns the full path of dresapi.json.
func (p Paths) ConfigPath() string {
	return filepath.Join(p.Dir, ConfigFile)
}

// CredentialsPath returns the full path of credentials.json.
func (p Paths) CredentialsPath() string {
	return filepath.Join(p.Dir, CredentialsFile)
}

// DefaultDataDir resolves the application data directory.
// Priority: DRES_DATA_DIR > $XDG_DATA_HOME/dres > platform default.
// The platform default is ~/.local/share/dres, or the user config
// directory on Windows.
func DefaultDataDir() string {
	if dir := os.Getenv("DRES_DATA_DIR"); dir != "" {
		return dir
	}
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName)
	}
	if runtime.GOOS == "windows" {
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, appName)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			// Last resort: the working directory.
			return "."
		}
	}
	return filepath.Join(homeDir, ".local", "share", appName)
}
