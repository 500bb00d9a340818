package store

import (
	"encoding/json"
	"fmt"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/pathkey"
	bolt "go.etcd.io/bbolt"
)

// GetNode returns the cached node for path in watch w's namespace. If the
// path has been deduplicated into SHARED_NODES, the canonical shared entry
// is returned instead (the "direct lookup with shared fallback" of
// spec §4.5).
func (s *Store) GetNode(w WatchID, path string) (FilesystemNode, error) {
	if err := s.checkOpen(); err != nil {
		return FilesystemNode{}, err
	}

	_, hash := pathkey.Of(path)
	var node FilesystemNode
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFSCache).Get(watchScopedKey(w, keyTypeNode, hash))
		if data != nil {
			found = true
			return json.Unmarshal(data, &node)
		}

		shared := tx.Bucket(bucketSharedNodes).Get(hash8(hash))
		if shared == nil {
			return nil
		}
		var sn SharedNodeInfo
		if err := json.Unmarshal(shared, &sn); err != nil {
			return err
		}
		if sn.WatchingIDs[w] {
			found = true
			node = sn.CanonicalNode
		}
		return nil
	})
	if err != nil {
		return FilesystemNode{}, fmt.Errorf("store: get node: %w", err)
	}
	if !found {
		return FilesystemNode{}, ErrNodeNotFound
	}
	return node, nil
}

// putNodeTx writes node into FS_CACHE, maintains the HIERARCHY/
// PARENT_LOOKUP edge to its parent (if any), and maintains PATH_PREFIX
// entries for every ancestor up to the watch root (invariants I1-I3).
// Assumes the node did not previously exist at a different parent; Move
// handling uses rewriteSubtreeTx instead.
func putNodeTx(tx *bolt.Tx, w WatchID, root string, node FilesystemNode) error {
	hash := node.Computed.PathHash

	if err := putJSON(tx.Bucket(bucketFSCache), watchScopedKey(w, keyTypeNode, hash), node); err != nil {
		return fmt.Errorf("put node: %w", err)
	}

	if node.Computed.ParentHash != nil {
		parentHash := *node.Computed.ParentHash
		if err := tx.Bucket(bucketHierarchy).Put(hierarchyKey(w, parentHash, hash), hash8(hash)); err != nil {
			return fmt.Errorf("put hierarchy edge: %w", err)
		}
		if err := tx.Bucket(bucketParentLookup).Put(watchScopedKey(w, keyTypeParentOf, hash), hash8(parentHash)); err != nil {
			return fmt.Errorf("put parent lookup: %w", err)
		}
	}

	for _, prefix := range pathkey.Prefixes(root, node.Path) {
		_, prefixHash := pathkey.Of(prefix)
		_ = prefixHash
		if err := tx.Bucket(bucketPathPrefix).Put(pathPrefixKey(w, prefix, hash), hash8(hash)); err != nil {
			return fmt.Errorf("put prefix entry: %w", err)
		}
	}

	return nil
}

// deleteNodeTx removes node hash's FS_CACHE entry, its hierarchy/parent
// edges, and its PATH_PREFIX entries. Does not touch descendants; callers
// deleting a subtree must call this once per descendant.
func deleteNodeTx(tx *bolt.Tx, w WatchID, root string, path string) error {
	_, hash := pathkey.Of(path)

	if err := tx.Bucket(bucketFSCache).Delete(watchScopedKey(w, keyTypeNode, hash)); err != nil {
		return err
	}

	parentData := tx.Bucket(bucketParentLookup).Get(watchScopedKey(w, keyTypeParentOf, hash))
	if parentData != nil {
		parentHash := parseHash8(parentData)
		if err := tx.Bucket(bucketHierarchy).Delete(hierarchyKey(w, parentHash, hash)); err != nil {
			return err
		}
	}
	if err := tx.Bucket(bucketParentLookup).Delete(watchScopedKey(w, keyTypeParentOf, hash)); err != nil {
		return err
	}

	for _, prefix := range pathkey.Prefixes(root, path) {
		if err := tx.Bucket(bucketPathPrefix).Delete(pathPrefixKey(w, prefix, hash)); err != nil {
			return err
		}
	}

	return nil
}

// descendantsTx returns the canonical path of every node in watch w's
// namespace whose path lies strictly under prefix, using the PATH_PREFIX
// index (spec §4.5's list_descendants / subtree-enumeration use).
func descendantsTx(tx *bolt.Tx, w WatchID, prefix string) ([]string, error) {
	bound := pathPrefixScanBound(w, prefix)
	c := tx.Bucket(bucketPathPrefix).Cursor()

	seen := make(map[pathkey.Hash]bool)
	var hashes []pathkey.Hash
	for k, v := c.Seek(bound); k != nil && hasBytesPrefix(k, bound); k, v = c.Next() {
		h := parseHash8(v)
		if !seen[h] {
			seen[h] = true
			hashes = append(hashes, h)
		}
	}

	var paths []string
	fc := tx.Bucket(bucketFSCache)
	for _, h := range hashes {
		data := fc.Get(watchScopedKey(w, keyTypeNode, h))
		if data == nil {
			continue
		}
		var node FilesystemNode
		if err := json.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		paths = append(paths, node.Path)
	}
	return paths, nil
}

func hasBytesPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ApplyCreate inserts a newly observed node, maintains hierarchy/prefix
// indices, bumps counters, appends the event record, and promotes to a
// SharedNodeInfo if another watch already observes the same path — all in
// one transaction (spec §4.4, §4.5(c): "one write transaction" per event).
func (s *Store) ApplyCreate(w WatchID, root string, node FilesystemNode, ev events.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := putNodeTx(tx, w, root, node); err != nil {
			return err
		}
		if err := s.touchWatch(tx, w, 1); err != nil {
			return err
		}
		if err := bumpCountersTx(tx, w, node.Computed.PathHash, events.KindCreate, 1); err != nil {
			return err
		}
		if err := appendEventRecordTx(tx, w, ev); err != nil {
			return err
		}
		return promoteIfSharedTx(tx, w, node)
	})
	if err != nil {
		return fmt.Errorf("store: apply create: %w", err)
	}
	return nil
}

// ApplyUpdate handles Write and Chmod: it refreshes a node's metadata in
// place without touching hierarchy or prefix indices (spec §4.4).
func (s *Store) ApplyUpdate(w WatchID, node FilesystemNode, ev events.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := putJSON(tx.Bucket(bucketFSCache), watchScopedKey(w, keyTypeNode, node.Computed.PathHash), node); err != nil {
			return err
		}
		if err := s.touchWatch(tx, w, 0); err != nil {
			return err
		}
		if err := bumpCountersTx(tx, w, node.Computed.PathHash, ev.Kind, 1); err != nil {
			return err
		}
		if err := appendEventRecordTx(tx, w, ev); err != nil {
			return err
		}
		return refreshSharedIfPresentTx(tx, w, node)
	})
	if err != nil {
		return fmt.Errorf("store: apply update: %w", err)
	}
	return nil
}

// ApplyRemove deletes path and, for a directory, every descendant
// enumerated via the PATH_PREFIX index, decrementing counters for each
// and dropping shared-node membership (spec §4.4).
func (s *Store) ApplyRemove(w WatchID, root string, path string, ev events.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		descendants, err := descendantsTx(tx, w, path)
		if err != nil {
			return err
		}
		toDelete := append(descendants, path)

		var removed int64
		for _, p := range toDelete {
			if err := s.removeOnePathTx(tx, w, root, p); err != nil {
				return err
			}
			removed++
		}

		if err := s.touchWatch(tx, w, -removed); err != nil {
			return err
		}
		_, hash := pathkey.Of(path)
		if err := bumpCountersTx(tx, w, hash, events.KindRemove, 1); err != nil {
			return err
		}
		return appendEventRecordTx(tx, w, ev)
	})
	if err != nil {
		return fmt.Errorf("store: apply remove: %w", err)
	}
	return nil
}

// removeOnePathTx deletes one path's node/hierarchy/prefix entries and
// drops it from any SharedNodeInfo whose membership would fall below 2
// (invariant I4).
func (s *Store) removeOnePathTx(tx *bolt.Tx, w WatchID, root string, path string) error {
	if err := deleteNodeTx(tx, w, root, path); err != nil {
		return err
	}
	return demoteSharedTx(tx, w, path, s)
}

// ApplyMove atomically rewrites every descendant path under src to sit
// under dst, preserving hierarchy edges and prefix-index entries, and
// emits a single Move event record (spec §4.4).
func (s *Store) ApplyMove(w WatchID, root string, src, dst string, ev events.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		descendants, err := descendantsTx(tx, w, src)
		if err != nil {
			return err
		}
		toMove := append(descendants, src)

		for _, oldPath := range toMove {
			newPath := pathkey.ReplacePrefix(oldPath, src, dst)
			if err := s.moveOnePathTx(tx, w, root, oldPath, newPath); err != nil {
				return err
			}
		}

		_, srcHash := pathkey.Of(src)
		_, dstHash := pathkey.Of(dst)
		if err := bumpCountersTx(tx, w, srcHash, events.KindMove, 0); err != nil {
			return err
		}
		if err := bumpCountersTx(tx, w, dstHash, events.KindMove, 1); err != nil {
			return err
		}
		return appendEventRecordTx(tx, w, ev)
	})
	if err != nil {
		return fmt.Errorf("store: apply move: %w", err)
	}
	return nil
}

// moveOnePathTx relocates a single node from oldPath to newPath: it reads
// the existing node, deletes its old index entries, rewrites its path and
// computed fields, and reinserts it under the new prefix.
func (s *Store) moveOnePathTx(tx *bolt.Tx, w WatchID, root, oldPath, newPath string) error {
	_, oldHash := pathkey.Of(oldPath)

	data := tx.Bucket(bucketFSCache).Get(watchScopedKey(w, keyTypeNode, oldHash))
	if data == nil {
		return nil // already absent; tolerate a partially-applied prior attempt
	}
	var node FilesystemNode
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}

	if err := deleteNodeTx(tx, w, root, oldPath); err != nil {
		return err
	}

	canonicalNew, newHash := pathkey.Of(newPath)
	node.Path = canonicalNew
	node.Computed.PathHash = newHash
	node.Computed.CanonicalName = pathkey.BaseName(canonicalNew)
	node.Computed.DepthFromRoot = pathkey.Depth(root, canonicalNew)
	node.Computed.LastEventKind = events.KindMove
	if parent, ok := pathkey.Parent(canonicalNew); ok {
		_, ph := pathkey.Of(parent)
		node.Computed.ParentHash = &ph
	} else {
		node.Computed.ParentHash = nil
	}

	return putNodeTx(tx, w, root, node)
}
