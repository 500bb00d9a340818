// Package store implements the multi-watch persistent cache and event log
// described in spec §4.5: a single embedded bbolt database housing the
// event log, node cache, hierarchy multimaps, prefix index, watch registry,
// shared-node table, and counter tables for every registered watch.
package store

import (
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/pathkey"
)

// WatchID identifies a registered watch. Assigned by RegisterWatch via
// github.com/google/uuid, matching the id-generation convention used
// throughout hyper-light-sylk's agent packages.
type WatchID string

// NodeKind discriminates the union carried by FilesystemNode.NodeType.
type NodeKind string

const (
	NodeFile      NodeKind = "file"
	NodeDirectory NodeKind = "directory"
	NodeSymlink   NodeKind = "symlink"
)

// NodeType is the tagged union of type-specific fields a FilesystemNode
// carries, mirroring spec §3's File{}/Directory{}/Symlink{} variants.
type NodeType struct {
	Kind NodeKind `json:"kind"`

	// File fields.
	Size        int64  `json:"size,omitempty"`
	ContentHash uint64 `json:"content_hash,omitempty"`
	MIME        string `json:"mime,omitempty"`

	// Directory fields.
	ChildCount int `json:"child_count,omitempty"`
	TotalSize  int64 `json:"total_size,omitempty"`
	MaxDepth   int   `json:"max_depth,omitempty"`

	// Symlink fields.
	Target   string `json:"target,omitempty"`
	Resolved bool   `json:"resolved,omitempty"`
}

// NodeMetadata carries the OS-observed metadata for a FilesystemNode.
type NodeMetadata struct {
	ModifiedAt time.Time `json:"modified_at"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
	Permissions uint32   `json:"permissions"`

	// Inode is the Unix inode number, when observed on a Unix host.
	Inode uint64 `json:"inode,omitempty"`

	// WindowsFileID is the Windows file index, when observed on a Windows
	// host. Inode and WindowsFileID are never both populated.
	WindowsFileID uint64 `json:"windows_file_id,omitempty"`
}

// CacheInfo tracks the freshness of a cached FilesystemNode.
type CacheInfo struct {
	CachedAt      time.Time `json:"cached_at"`
	LastVerified  time.Time `json:"last_verified"`
	CacheVersion  int       `json:"cache_version"`
	NeedsRefresh  bool      `json:"needs_refresh"`
}

// ComputedFields holds values the synchroniser derives rather than
// observes directly.
type ComputedFields struct {
	DepthFromRoot int             `json:"depth_from_root"`
	PathHash      pathkey.Hash    `json:"path_hash"`
	ParentHash    *pathkey.Hash   `json:"parent_hash,omitempty"`
	CanonicalName string          `json:"canonical_name"`
	LastEventKind events.Kind     `json:"last_event_kind"`
}

// FilesystemNode is the persistent representation of one observed path, as
// specified in spec §3.
type FilesystemNode struct {
	Path      string         `json:"path"`
	NodeType  NodeType       `json:"node_type"`
	Metadata  NodeMetadata   `json:"metadata"`
	CacheInfo CacheInfo      `json:"cache_info"`
	Computed  ComputedFields `json:"computed"`
}

// WatchConfigSnapshot is the subset of WatcherConfig persisted alongside a
// watch's metadata, kept independent of pkg/config to avoid a store->config
// import cycle (pkg/engine copies the fields in at registration time).
type WatchConfigSnapshot struct {
	Recursive bool `json:"recursive"`
}

// WatchMetadata describes one registered watch (spec §3).
type WatchMetadata struct {
	WatchID    WatchID             `json:"watch_id"`
	RootPath   string              `json:"root_path"`
	Config     WatchConfigSnapshot `json:"config"`
	CreatedAt  time.Time           `json:"created_at"`
	LastActive time.Time           `json:"last_active"`
	NodeCount  int64               `json:"node_count"`
}

// SharedNodeInfo represents a path observed by two or more watches (spec §3).
type SharedNodeInfo struct {
	PathHash      pathkey.Hash    `json:"path_hash"`
	WatchingIDs   map[WatchID]bool `json:"watching_ids"`
	CanonicalNode FilesystemNode  `json:"canonical_node"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// OverlapKind classifies the structural relationship between two watch
// roots (spec §3, §4.5).
type OverlapKind string

const (
	OverlapNestedChild    OverlapKind = "nested_child"
	OverlapNestedParent   OverlapKind = "nested_parent"
	OverlapIntersection   OverlapKind = "intersection"
	OverlapSiblingOverlap OverlapKind = "sibling_overlap"
	OverlapNone           OverlapKind = "none"
)

// WatchOverlap describes a detected structural relationship between two
// watches' root paths.
type WatchOverlap struct {
	WatchA      WatchID     `json:"watch_a"`
	WatchB      WatchID     `json:"watch_b"`
	OverlapKind OverlapKind `json:"overlap_kind"`
	SharedPaths []string    `json:"shared_paths,omitempty"`
}

// EventRecord is one append-only entry in a watch's event log (spec §3).
type EventRecord struct {
	RecordID  string       `json:"record_id"`
	WatchID   WatchID      `json:"watch_id"`
	Path      string       `json:"path"`
	Kind      events.Kind  `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   events.Event `json:"payload"`
}

// CounterTuple is the per-watch, per-path, or global counter set specified
// in spec §3.
type CounterTuple struct {
	EventCount    uint64                 `json:"event_count"`
	MetadataCount uint64                 `json:"metadata_count"`
	PerTypeCounts map[events.Kind]uint64 `json:"per_type_counts"`
}

// addKind increments the counter for kind and the aggregate EventCount.
func (c *CounterTuple) addKind(kind events.Kind, delta int64) {
	if c.PerTypeCounts == nil {
		c.PerTypeCounts = make(map[events.Kind]uint64)
	}
	if delta >= 0 {
		c.PerTypeCounts[kind] += uint64(delta)
		c.EventCount += uint64(delta)
	} else {
		d := uint64(-delta)
		if c.PerTypeCounts[kind] > d {
			c.PerTypeCounts[kind] -= d
		} else {
			c.PerTypeCounts[kind] = 0
		}
		if c.EventCount > d {
			c.EventCount -= d
		} else {
			c.EventCount = 0
		}
	}
}

// RepairReport summarises the outcome of RepairStatsCounters (SPEC_FULL
// §B.3): it records which per-type counters could not be reconstructed
// from node state alone, since only last_event_kind survives per node.
type RepairReport struct {
	WatchesRepaired   int      `json:"watches_repaired"`
	NodesScanned      int64    `json:"nodes_scanned"`
	LossyPerTypeKinds []string `json:"lossy_per_type_kinds"`
}
