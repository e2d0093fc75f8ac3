// Package paths provides centralized path resolution for screenrec's directories.
//
// screenrec supports the XDG Base Directory Specification for its own files:
//
//   - Config (XDG_CONFIG_HOME): config.yaml (or config.toml), user preferences
//   - State (XDG_STATE_HOME): logs/, application and encoder logs
//
// Resolution order:
//  1. If ~/.screenrec/ exists → use the flat layout (all paths under ~/.screenrec/)
//  2. If XDG env vars are set → use XDG layout with proper separation
//  3. Fresh install, no XDG vars → default to ~/.screenrec/
//
// Recordings themselves do not live here. They default to a per-platform
// videos folder, see RecordingsDir.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appDirName = "screenrec"

// recordingsFolder is the folder created inside the user's videos directory.
const recordingsFolder = "ScreenRec"

var (
	mu       sync.Mutex
	resolved *resolvedPaths
)

type resolvedPaths struct {
	configDir string
	stateDir  string
	flat      bool
}

// resolve computes the path layout once and caches it.
func resolve() (*resolvedPaths, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	flatDir := filepath.Join(home, "."+appDirName)

	if info, err := os.Stat(flatDir); err == nil && info.IsDir() {
		resolved = &resolvedPaths{configDir: flatDir, stateDir: flatDir, flat: true}
		return resolved, nil
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	xdgState := os.Getenv("XDG_STATE_HOME")

	if xdgConfig != "" || xdgState != "" {
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		if xdgState == "" {
			xdgState = filepath.Join(home, ".local", "state")
		}
		resolved = &resolvedPaths{
			configDir: filepath.Join(xdgConfig, appDirName),
			stateDir:  filepath.Join(xdgState, appDirName),
		}
		return resolved, nil
	}

	resolved = &resolvedPaths{configDir: flatDir, stateDir: flatDir, flat: true}
	return resolved, nil
}

// ConfigDir returns the directory holding the preferences file.
func ConfigDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.configDir, nil
}

// StateDir returns the directory for runtime state and logs.
func StateDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.stateDir, nil
}

// ConfigFilePath returns the full path to config.yaml.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// TOMLConfigFilePath returns the full path to the alternate config.toml.
func TOMLConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// RecordingsDir returns the default save directory for the current platform.
// It does not create the directory.
func RecordingsDir() (string, error) {
	return RecordingsDirFor(runtime.GOOS)
}

// RecordingsDirFor returns the default save directory for goos.
//
//	darwin:        ~/Movies/ScreenRec
//	windows/other: ~/Videos/ScreenRec
func RecordingsDirFor(goos string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if goos == "darwin" {
		return filepath.Join(home, "Movies", recordingsFolder), nil
	}
	return filepath.Join(home, "Videos", recordingsFolder), nil
}

// IsFlatLayout returns true if using the ~/.screenrec/ flat layout.
func IsFlatLayout() bool {
	r, err := resolve()
	if err != nil {
		return true
	}
	return r.flat
}

// Reset clears the cached path resolution. This is intended for testing only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
