// Package movedetect implements the Move Correlator of spec §4.3: it
// holds short-lived pending Removes and Creates, bucketed by identity
// keys, and attempts to pair them within a configurable timeout into
// Move events carrying a confidence score and detection method.
package movedetect

import (
	"time"

	"github.com/0xmhha/pathwatch/pkg/pathid"
)

// Config holds the move_detector.* settings from spec §6.
type Config struct {
	Timeout                time.Duration
	ConfidenceThreshold    float64
	WeightSize             float64
	WeightTime             float64
	WeightInode            float64
	WeightHash             float64
	WeightName             float64
	MaxPendingEvents       int
	ContentHashMaxFileSize int64
}

// pendingEvent is the internal record held in a pool while awaiting a
// pair, mirroring spec §3's PendingEvent.
type pendingEvent struct {
	rawPath     string
	timestamp   time.Time
	size        *int64
	id          *pathid.ID
	isDirectory bool
	contentHash *uint64
}

// metaEntry is one recent-metadata cache record: the last observed
// identity of a live path, used both by the path-type inferrer and as a
// fallback source of size/inode/content-hash for a Remove whose path is
// already gone by the time the correlator sees it.
type metaEntry struct {
	size        int64
	id          pathid.ID
	hasID       bool
	mtime       time.Time
	isDirectory bool
	contentHash uint64
	hasHash     bool
}

// PoolStats reports the size of each bucket in one pending pool, per
// SPEC_FULL §B.3's Watcher.Stats() detail level.
type PoolStats struct {
	ByInode int `json:"by_inode"`
	BySize  int `json:"by_size"`
	NoSize  int `json:"no_size"`
	Total   int `json:"total"`
}

// Stats is the snapshot returned by Correlator.Stats.
type Stats struct {
	PendingRemoves PoolStats `json:"pending_removes"`
	PendingCreates PoolStats `json:"pending_creates"`
}
