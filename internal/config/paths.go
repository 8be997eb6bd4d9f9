package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName         = "procore-go"
	configFileName  = "config.toml"
	historyFileName = "history.db"
)

// xdgDir describes one XDG base directory: the variable that overrides it
// and its location relative to $HOME when unset.
type xdgDir struct {
	env      string
	fallback []string
}

var (
	xdgConfig = xdgDir{env: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	xdgData   = xdgDir{env: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
)

// resolve returns the app directory under d. Only Linux honors the XDG
// variable. macOS keeps config and data together in Application Support.
func (d xdgDir) resolve(goos, home string) string {
	switch goos {
	case "linux":
		if v := os.Getenv(d.env); v != "" {
			return filepath.Join(v, appName)
		}
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	return filepath.Join(append(append([]string{home}, d.fallback...), appName)...)
}

func appDir(d xdgDir) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return d.resolve(runtime.GOOS, home)
}

// DefaultConfigDir is where config.toml lives when no path is given.
func DefaultConfigDir() string { return appDir(xdgConfig) }

// DefaultDataDir holds the run-history database.
func DefaultDataDir() string { return appDir(xdgData) }

// DefaultConfigPath is used when neither PROCORE_GO_CONFIG nor --config is set.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

func DefaultHistoryPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, historyFileName)
}
