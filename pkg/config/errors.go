package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoWatchPath is returned when no root path is specified.
	ErrNoWatchPath = errors.New("no watch path specified")

	// ErrInvalidTimeout is returned when move_detector.timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid move detector timeout: must be > 0")

	// ErrInvalidConfidenceThreshold is returned when confidence_threshold
	// is outside [0, 1].
	ErrInvalidConfidenceThreshold = errors.New("invalid confidence threshold: must be in [0, 1]")

	// ErrInvalidWeight is returned when a scoring weight is negative, or
	// all weights are zero.
	ErrInvalidWeight = errors.New("invalid move detector weight: must be non-negative and sum to a positive total")

	// ErrInvalidMaxPendingEvents is returned when max_pending_events is <= 0.
	ErrInvalidMaxPendingEvents = errors.New("invalid max pending events: must be > 0")

	// ErrInvalidContentHashCutoff is returned when content_hash_max_file_size
	// is negative.
	ErrInvalidContentHashCutoff = errors.New("invalid content hash cutoff: must be >= 0")

	// ErrInvalidEventBufferSize is returned when event_buffer_size is <= 0.
	ErrInvalidEventBufferSize = errors.New("invalid event buffer size: must be > 0")

	// ErrInvalidPattern is returned when an exclude_patterns entry is not a
	// valid glob pattern.
	ErrInvalidPattern = errors.New("invalid exclude pattern")

	// ErrNoDatabasePath is returned when store.database_path is empty.
	ErrNoDatabasePath = errors.New("no store database path specified")

	// ErrInvalidRetention is returned when store.retention is negative.
	ErrInvalidRetention = errors.New("invalid retention window: must be >= 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
