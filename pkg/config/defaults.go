package config

import (
	"os"
	"path/filepath"
)

// defaultDBPath returns the default database file path.
//
// Returns: ~/.config/pathwatch/cache.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./cache.db"
	}

	return filepath.Join(homeDir, ".config", "pathwatch", "cache.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/pathwatch/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "pathwatch", "config.yaml")
}
