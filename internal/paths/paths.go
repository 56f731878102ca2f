// Package paths resolves where bloom reads its configuration and where
// synchronous stores keep their files.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user configuration and data directories.
const AppName = "bloom"

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// DefaultDataDirName is the CWD-relative data directory used when nothing
// else selects one.
const DefaultDataDirName = ".bloom-db"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "BLOOM_CONFIG_DIR"
	EnvDataDir   = "BLOOM_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdgDir returns $env/bloom, falling back to ~/<fallback...>/bloom on Linux
// and the user config directory elsewhere.
func xdgDir(env string, fallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, AppName)...), nil
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/bloom (fallback ~/.config/bloom)
// macOS:   ~/Library/Application Support/bloom
// Windows: %APPDATA%/bloom
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/bloom (fallback ~/.local/share/bloom)
// macOS and Windows: same as DefaultConfigDir.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir picks the configuration directory: flag, then
// BLOOM_CONFIG_DIR, then DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the data directory: flag, then the config file's
// data_dir, then BLOOM_DATA_DIR, then $(CWD)/.bloom-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the configuration file path inside dir.
func ConfigFile(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}
