// Package source implements the Source Adapter of spec §4.1: it wraps
// fsnotify, normalises its notifications into RawEvent, and delivers them
// through a bounded channel with monotonic delivery per path. On overflow
// it drops the oldest pending raw event and reports the affected path on
// the Inconsistent channel. The engine pipeline logs each such notice; it
// does not pass it to the correlator, and no metadata refresh is forced.
package source

import (
	"context"
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
)

// Config controls the source adapter's channel sizing and exclusion
// filtering, mirroring config.WatcherConfig's exclude_patterns and
// event_buffer_size fields.
type Config struct {
	// BufferSize is the capacity of the raw event channel.
	BufferSize int

	// ExcludeGlobs are compiled glob patterns matched against the full
	// path; a match drops the notification before it is ever emitted.
	ExcludeGlobs []Matcher
}

// Matcher reports whether path should be excluded from the raw event
// stream. Kept as a narrow interface (rather than importing gobwas/glob
// here directly) so tests can supply trivial matchers.
type Matcher interface {
	Match(path string) bool
}

// Inconsistency is delivered on the Inconsistent channel whenever the raw
// event channel overflows and a pending notification for Path had to be
// dropped, per spec §4.1.
type Inconsistency struct {
	Path      string
	Timestamp time.Time
}

// Adapter produces a bounded stream of RawEvent from OS-level filesystem
// notifications.
type Adapter interface {
	// Start begins watching root (and, if recursive, every subdirectory)
	// and returns once the initial tree has been registered. Events flow
	// asynchronously afterward until ctx is cancelled or Close is called.
	Start(ctx context.Context, root string, recursive bool) error

	// Events returns the bounded raw event channel. Closed when the
	// adapter stops.
	Events() <-chan events.RawEvent

	// Inconsistent returns the channel of overflow-induced
	// possibly-inconsistent notices. Closed when the adapter stops.
	Inconsistent() <-chan Inconsistency

	// Errors returns the channel of non-fatal adapter errors. Closed
	// when the adapter stops.
	Errors() <-chan error

	// Close stops watching and releases the underlying OS resources.
	Close() error
}
