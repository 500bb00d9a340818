// Package config provides configuration management for pathwatch.
//
// Configuration is loaded from multiple sources with the following
// precedence:
//  1. Environment variables (highest priority)
//  2. Configuration file
//  3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("watching: %s\n", cfg.Path)
package config

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"
)

// WatcherConfig is the complete configuration consumed at construction of
// a watch, as specified in spec §6.
//
// Invariants:
//   - Path must be non-empty
//   - MoveDetector weights must be non-negative and sum to a positive total
//   - MoveDetector.Timeout and MaxPendingEvents must be > 0
//   - Store.Retention must be >= 0 (0 disables retention)
type WatcherConfig struct {
	// Path is the root path to watch.
	Path string `yaml:"path"`

	// Recursive controls whether subdirectories are watched.
	Recursive bool `yaml:"recursive"`

	// ExcludePatterns are glob patterns (matched against the full path)
	// the source adapter drops before a raw notification ever reaches
	// the inferrer or correlator.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// EventBufferSize is the capacity of the source adapter's bounded raw
	// event channel (spec §4.1). On overflow the adapter drops the oldest
	// pending raw event and flags its path possibly-inconsistent.
	EventBufferSize int `yaml:"event_buffer_size"`

	// MoveDetector configures the move correlator.
	MoveDetector MoveDetectorConfig `yaml:"move_detector"`

	// Store configures the persistent multi-watch store.
	Store StoreConfig `yaml:"store"`

	// Logging configures the logger used across the watch pipeline.
	Logging LoggingConfig `yaml:"logging"`
}

// MoveDetectorConfig configures the move correlator (spec §4.3, §6).
type MoveDetectorConfig struct {
	// Timeout bounds how long a pending Remove/Create waits for its pair.
	Timeout time.Duration `yaml:"timeout"`

	// ConfidenceThreshold is the minimum score required to emit a Move.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// WeightSize, WeightTime, WeightInode, WeightHash, and WeightName are
	// the scoring weights for the confidence formula in spec §4.3. Their
	// defaults sum to 1.0, but the sum is not enforced; Validate only
	// rejects negative weights and an all-zero weight vector.
	WeightSize  float64 `yaml:"weight_size"`
	WeightTime  float64 `yaml:"weight_time"`
	WeightInode float64 `yaml:"weight_inode"`
	WeightHash  float64 `yaml:"weight_hash"`
	WeightName  float64 `yaml:"weight_name"`

	// MaxPendingEvents bounds each pending pool's size.
	MaxPendingEvents int `yaml:"max_pending_events"`

	// ContentHashMaxFileSize is the cutoff above which content hashing is
	// skipped, in bytes.
	ContentHashMaxFileSize int64 `yaml:"content_hash_max_file_size"`
}

// StoreConfig configures the persistent multi-watch store (spec §4.5, §6).
type StoreConfig struct {
	// DatabasePath is the location of the bbolt file backing the store.
	DatabasePath string `yaml:"database_path"`

	// Retention is the event-log retention window. Zero disables the
	// retention sweeper.
	Retention time.Duration `yaml:"retention"`

	// RetentionSweepInterval is the cadence of the background retention
	// job. Zero disables the background job (Retention still bounds
	// what an on-demand sweep removes).
	RetentionSweepInterval time.Duration `yaml:"retention_sweep_interval"`

	// OverlapOptimisationInterval is the cadence of the background overlap
	// optimisation job. Zero disables the background job (on-demand
	// optimisation still works).
	OverlapOptimisationInterval time.Duration `yaml:"overlap_optimisation_interval"`

	// StatsRepairInterval is the cadence of the background stats-repair
	// job. Zero disables the background job.
	StatsRepairInterval time.Duration `yaml:"stats_repair_interval"`
}

// LoggingConfig contains logging settings, mirroring pkg/logger.Config.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Output is the destination (stdout, stderr, or file path).
	Output string `yaml:"output"`

	// Format is the output format (text, json).
	Format string `yaml:"format"`
}

// Validate checks that cfg satisfies every invariant listed on
// WatcherConfig, returning the first violation found.
//
// Thread-safety: this method is read-only and thread-safe.
func (c *WatcherConfig) Validate() error {
	if c.Path == "" {
		return ErrNoWatchPath
	}

	md := c.MoveDetector
	if c.EventBufferSize <= 0 {
		return ErrInvalidEventBufferSize
	}
	for _, pat := range c.ExcludePatterns {
		if _, err := glob.Compile(pat); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pat, err)
		}
	}

	if md.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if md.ConfidenceThreshold < 0 || md.ConfidenceThreshold > 1 {
		return ErrInvalidConfidenceThreshold
	}
	if md.MaxPendingEvents <= 0 {
		return ErrInvalidMaxPendingEvents
	}
	if md.ContentHashMaxFileSize < 0 {
		return ErrInvalidContentHashCutoff
	}
	for _, w := range []float64{md.WeightSize, md.WeightTime, md.WeightInode, md.WeightHash, md.WeightName} {
		if w < 0 {
			return ErrInvalidWeight
		}
	}
	if md.WeightSize+md.WeightTime+md.WeightInode+md.WeightHash+md.WeightName <= 0 {
		return ErrInvalidWeight
	}

	if c.Store.DatabasePath == "" {
		return ErrNoDatabasePath
	}
	if c.Store.Retention < 0 {
		return ErrInvalidRetention
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values, based on
// the weight defaults in spec §4.3 (they sum to 1.0).
func Default() *WatcherConfig {
	return &WatcherConfig{
		Recursive:       true,
		EventBufferSize: 1024,
		MoveDetector: MoveDetectorConfig{
			Timeout:                1 * time.Second,
			ConfidenceThreshold:    0.7,
			WeightSize:             0.2,
			WeightTime:             0.15,
			WeightInode:            0.4,
			WeightHash:             0.15,
			WeightName:             0.1,
			MaxPendingEvents:       1000,
			ContentHashMaxFileSize: 1 << 20, // 1 MiB
		},
		Store: StoreConfig{
			DatabasePath:                defaultDBPath(),
			Retention:                   30 * 24 * time.Hour,
			RetentionSweepInterval:      1 * time.Hour,
			OverlapOptimisationInterval: 5 * time.Minute,
			StatsRepairInterval:         1 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
