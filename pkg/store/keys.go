package store

import (
	"encoding/binary"

	"github.com/0xmhha/pathwatch/pkg/pathkey"
)

// Bucket names for the logical tables of spec §4.5. Each is a top-level
// bbolt bucket; watch-scoping is encoded into the key rather than into
// nested buckets, so that a single cursor seek gives lexicographic
// locality for one watch per spec's WatchScopedKey scheme.
var (
	bucketEventLog      = []byte("event_log")
	bucketFSCache       = []byte("fs_cache")
	bucketHierarchy     = []byte("hierarchy")
	bucketParentLookup  = []byte("parent_lookup")
	bucketPathPrefix    = []byte("path_prefix")
	bucketSharedNodes   = []byte("shared_nodes")
	bucketPathToWatches = []byte("path_to_watches")
	bucketWatchRegistry = []byte("watch_registry")
	bucketStatsGlobal   = []byte("stats_global")
	bucketWatchStats    = []byte("watch_stats")
	bucketPathStats     = []byte("path_stats")
	bucketMeta          = []byte("meta")

	allBuckets = [][]byte{
		bucketEventLog, bucketFSCache, bucketHierarchy, bucketParentLookup,
		bucketPathPrefix, bucketSharedNodes, bucketPathToWatches,
		bucketWatchRegistry, bucketStatsGlobal, bucketWatchStats,
		bucketPathStats, bucketMeta,
	}
)

// keyType is the type_byte component of a WatchScopedKey (spec §4.5:
// "WatchScopedKey = watch_id ‖ key_type_byte ‖ path_hash").
type keyType byte

const (
	keyTypeNode     keyType = 'N' // FS_CACHE entries
	keyTypeParentOf keyType = 'P' // HIERARCHY and PARENT_LOOKUP entries
)

// hash8 encodes a path_hash as 8 big-endian bytes so lexicographic byte
// order matches numeric order, keeping range scans well-defined.
func hash8(h pathkey.Hash) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(h))
	return b
}

func parseHash8(b []byte) pathkey.Hash {
	return pathkey.Hash(binary.BigEndian.Uint64(b))
}

// watchScopedKey builds WatchScopedKey = watch_id ‖ key_type_byte ‖ hash,
// used directly as FS_CACHE and PARENT_LOOKUP keys.
func watchScopedKey(w WatchID, kt keyType, h pathkey.Hash) []byte {
	wb := []byte(w)
	key := make([]byte, 0, len(wb)+1+8)
	key = append(key, wb...)
	key = append(key, byte(kt))
	key = append(key, hash8(h)...)
	return key
}

// hierarchyKey builds the composite HIERARCHY key: the WatchScopedKey of
// the parent (fixed prefix for a range scan over all of its children)
// followed by the child's hash for uniqueness, since bbolt keys must be
// unique within a bucket and HIERARCHY is logically multi-valued.
func hierarchyKey(w WatchID, parent, child pathkey.Hash) []byte {
	prefix := watchScopedKey(w, keyTypeParentOf, parent)
	key := make([]byte, 0, len(prefix)+8)
	key = append(key, prefix...)
	key = append(key, hash8(child)...)
	return key
}

// hierarchyPrefix returns the fixed prefix shared by every HIERARCHY key
// for parent's children, for use as a cursor seek/range bound.
func hierarchyPrefix(w WatchID, parent pathkey.Hash) []byte {
	return watchScopedKey(w, keyTypeParentOf, parent)
}

// pathPrefixKey builds the composite PATH_PREFIX key: watch_id ‖ prefix
// string ‖ 0x00 separator ‖ full path_hash, so a scan for everything under
// a given ancestor prefix is a single cursor range.
func pathPrefixKey(w WatchID, prefix string, full pathkey.Hash) []byte {
	wb := []byte(w)
	pb := []byte(prefix)
	key := make([]byte, 0, len(wb)+len(pb)+1+8)
	key = append(key, wb...)
	key = append(key, pb...)
	key = append(key, 0x00)
	key = append(key, hash8(full)...)
	return key
}

// pathPrefixScanBound returns the fixed prefix shared by every PATH_PREFIX
// key recorded under the given ancestor prefix string.
func pathPrefixScanBound(w WatchID, prefix string) []byte {
	wb := []byte(w)
	pb := []byte(prefix)
	key := make([]byte, 0, len(wb)+len(pb)+1)
	key = append(key, wb...)
	key = append(key, pb...)
	key = append(key, 0x00)
	return key
}

// pathToWatchesKey builds the composite PATH_TO_WATCHES key: path_hash ‖
// watch_id, so a range scan over a path_hash prefix enumerates every
// watch observing that path.
func pathToWatchesKey(h pathkey.Hash, w WatchID) []byte {
	key := make([]byte, 0, 8+len(w))
	key = append(key, hash8(h)...)
	key = append(key, []byte(w)...)
	return key
}

func pathToWatchesScanBound(h pathkey.Hash) []byte {
	return hash8(h)
}

// eventLogKey builds the composite EVENT_LOG key: watch_id ‖ path_hash ‖
// timestamp(ns, big-endian) ‖ record_id, ordering every record for one
// (watch, path) pair in time order, per spec §3's EventRecord key
// requirement.
func eventLogKey(w WatchID, p pathkey.Hash, tsNanos int64, recordID string) []byte {
	wb := []byte(w)
	rb := []byte(recordID)
	key := make([]byte, 0, len(wb)+8+8+len(rb))
	key = append(key, wb...)
	key = append(key, hash8(p)...)
	tb := make([]byte, 8)
	binary.BigEndian.PutUint64(tb, uint64(tsNanos))
	key = append(key, tb...)
	key = append(key, rb...)
	return key
}

func eventLogScanBound(w WatchID, p pathkey.Hash) []byte {
	wb := []byte(w)
	key := make([]byte, 0, len(wb)+8)
	key = append(key, wb...)
	key = append(key, hash8(p)...)
	return key
}

func eventLogWatchScanBound(w WatchID) []byte {
	return []byte(w)
}

// statKey encodes a per-path stats key: watch_id ‖ path_hash.
func statKey(w WatchID, p pathkey.Hash) []byte {
	key := make([]byte, 0, len(w)+8)
	key = append(key, []byte(w)...)
	key = append(key, hash8(p)...)
	return key
}
