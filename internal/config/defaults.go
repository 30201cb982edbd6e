package config

import (
	"os"
	"path/filepath"
)

// ConfigDir returns $XDG_CONFIG_HOME/gestured, or ~/.config/gestured.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gestured")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gestured")
}

// DataDir returns $XDG_DATA_HOME/gestured, or ~/.local/share/gestured.
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "gestured")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "gestured")
}

// DefaultHistoryPath is the default activation database.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history.db")
}

// configNames are tried in order in each search directory.
var configNames = []string{"config.toml", "config.json", "config.yaml", "config.yml"}

// searchDirs returns the directories FindConfigFile looks in.
func searchDirs() []string {
	return []string{".", ConfigDir()}
}
