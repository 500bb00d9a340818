package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*WatcherConfig, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*WatcherConfig, error)
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for config file in:
// 1. ./config.yaml (current directory)
// 2. ~/.config/pathwatch/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*WatcherConfig, error) {
	// Start with default configuration
	cfg := Default()

	// Find config file path
	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	// Load from file if it exists
	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// If file is specified but can't be loaded, return error
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			// Otherwise, just use defaults
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	// Apply environment variable overrides
	cfg = l.applyEnvVars(cfg)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*WatcherConfig, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg WatcherConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile searches for a config file in standard locations.
//
// Searches in order:
// 1. ./config.yaml
// 2. ~/.config/pathwatch/config.yaml
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *WatcherConfig) *WatcherConfig {
	result := *base

	if override.Path != "" {
		result.Path = override.Path
	}
	// Recursive is a bool, so we always take the override value.
	result.Recursive = override.Recursive
	if len(override.ExcludePatterns) > 0 {
		result.ExcludePatterns = override.ExcludePatterns
	}
	if override.EventBufferSize > 0 {
		result.EventBufferSize = override.EventBufferSize
	}

	md, omd := &result.MoveDetector, override.MoveDetector
	if omd.Timeout > 0 {
		md.Timeout = omd.Timeout
	}
	if omd.ConfidenceThreshold > 0 {
		md.ConfidenceThreshold = omd.ConfidenceThreshold
	}
	if omd.WeightSize > 0 {
		md.WeightSize = omd.WeightSize
	}
	if omd.WeightTime > 0 {
		md.WeightTime = omd.WeightTime
	}
	if omd.WeightInode > 0 {
		md.WeightInode = omd.WeightInode
	}
	if omd.WeightHash > 0 {
		md.WeightHash = omd.WeightHash
	}
	if omd.WeightName > 0 {
		md.WeightName = omd.WeightName
	}
	if omd.MaxPendingEvents > 0 {
		md.MaxPendingEvents = omd.MaxPendingEvents
	}
	if omd.ContentHashMaxFileSize > 0 {
		md.ContentHashMaxFileSize = omd.ContentHashMaxFileSize
	}

	st, ost := &result.Store, override.Store
	if ost.DatabasePath != "" {
		st.DatabasePath = ost.DatabasePath
	}
	if ost.Retention > 0 {
		st.Retention = ost.Retention
	}
	if ost.RetentionSweepInterval > 0 {
		st.RetentionSweepInterval = ost.RetentionSweepInterval
	}
	if ost.OverlapOptimisationInterval > 0 {
		st.OverlapOptimisationInterval = ost.OverlapOptimisationInterval
	}
	if ost.StatsRepairInterval > 0 {
		st.StatsRepairInterval = ost.StatsRepairInterval
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - PATHWATCH_PATH: root path to watch
//   - PATHWATCH_DB: path to the store database file
//   - PATHWATCH_LOG_LEVEL: log level
func (l *loader) applyEnvVars(cfg *WatcherConfig) *WatcherConfig {
	result := *cfg

	if path := os.Getenv("PATHWATCH_PATH"); path != "" {
		result.Path = path
	}

	if dbPath := os.Getenv("PATHWATCH_DB"); dbPath != "" {
		result.Store.DatabasePath = dbPath
	}

	if logLevel := os.Getenv("PATHWATCH_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*WatcherConfig, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*WatcherConfig, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *WatcherConfig, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
