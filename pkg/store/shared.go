package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xmhha/pathwatch/pkg/pathkey"
	bolt "go.etcd.io/bbolt"
)

// sharedCacheKey turns a path_hash into the string key the in-memory LRU
// accelerator uses (golang-lru requires a comparable key type; hex keeps
// it human-readable in debug dumps).
func sharedCacheKey(h pathkey.Hash) string {
	return hex.EncodeToString(hash8(h))
}

// watchingTx returns every watch id currently recorded against path_hash h
// in PATH_TO_WATCHES.
func watchingTx(tx *bolt.Tx, h pathkey.Hash) ([]WatchID, error) {
	bound := pathToWatchesScanBound(h)
	c := tx.Bucket(bucketPathToWatches).Cursor()
	var ids []WatchID
	for k, _ := c.Seek(bound); k != nil && hasBytesPrefix(k, bound); k, _ = c.Next() {
		ids = append(ids, WatchID(k[8:]))
	}
	return ids, nil
}

// promoteIfSharedTx registers watch w as observing node's path in
// PATH_TO_WATCHES, and if the resulting membership is >= 2, creates or
// refreshes the corresponding SharedNodeInfo (invariant I4).
func promoteIfSharedTx(tx *bolt.Tx, w WatchID, node FilesystemNode) error {
	h := node.Computed.PathHash

	if err := tx.Bucket(bucketPathToWatches).Put(pathToWatchesKey(h, w), []byte(w)); err != nil {
		return err
	}

	ids, err := watchingTx(tx, h)
	if err != nil {
		return err
	}
	if len(ids) < 2 {
		return nil
	}

	membership := make(map[WatchID]bool, len(ids))
	for _, id := range ids {
		membership[id] = true
	}

	sn := SharedNodeInfo{
		PathHash:      h,
		WatchingIDs:   membership,
		CanonicalNode: node,
		LastUpdated:   time.Now(),
	}
	return putJSON(tx.Bucket(bucketSharedNodes), hash8(h), sn)
}

// refreshSharedIfPresentTx updates the canonical node stored in an
// existing SharedNodeInfo after a Write/Chmod, preferring the most
// recently verified entry as spec §4.5's list_directory_unified requires.
func refreshSharedIfPresentTx(tx *bolt.Tx, w WatchID, node FilesystemNode) error {
	h := node.Computed.PathHash
	b := tx.Bucket(bucketSharedNodes)
	data := b.Get(hash8(h))
	if data == nil {
		return nil
	}
	var sn SharedNodeInfo
	if err := json.Unmarshal(data, &sn); err != nil {
		return err
	}
	if !sn.WatchingIDs[w] {
		return nil
	}
	sn.CanonicalNode = node
	sn.LastUpdated = time.Now()
	return putJSON(b, hash8(h), sn)
}

// demoteSharedTx drops watch w from path's PATH_TO_WATCHES membership and,
// if the remaining membership falls below 2, destroys the SharedNodeInfo
// entry (invariant I4's converse).
func demoteSharedTx(tx *bolt.Tx, w WatchID, path string, s *Store) error {
	_, h := pathkey.Of(path)

	if err := tx.Bucket(bucketPathToWatches).Delete(pathToWatchesKey(h, w)); err != nil {
		return err
	}

	ids, err := watchingTx(tx, h)
	if err != nil {
		return err
	}

	b := tx.Bucket(bucketSharedNodes)
	if len(ids) >= 2 {
		data := b.Get(hash8(h))
		if data == nil {
			return nil
		}
		var sn SharedNodeInfo
		if err := json.Unmarshal(data, &sn); err != nil {
			return err
		}
		delete(sn.WatchingIDs, w)
		if err := putJSON(b, hash8(h), sn); err != nil {
			return err
		}
		if s != nil {
			s.invalidateSharedCache(sharedCacheKey(h))
		}
		return nil
	}

	if err := b.Delete(hash8(h)); err != nil {
		return err
	}
	if s != nil {
		s.invalidateSharedCache(sharedCacheKey(h))
	}
	return nil
}

// GetSharedNode returns the SharedNodeInfo for path, consulting the
// in-memory accelerator first.
func (s *Store) GetSharedNode(path string) (SharedNodeInfo, bool, error) {
	if err := s.checkOpen(); err != nil {
		return SharedNodeInfo{}, false, err
	}

	_, h := pathkey.Of(path)
	ck := sharedCacheKey(h)

	s.mu.RLock()
	if sn, ok := s.sharedCache.Get(ck); ok {
		s.mu.RUnlock()
		return sn, true, nil
	}
	s.mu.RUnlock()

	var sn SharedNodeInfo
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSharedNodes).Get(hash8(h))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &sn)
	})
	if err != nil {
		return SharedNodeInfo{}, false, fmt.Errorf("store: get shared node: %w", err)
	}
	if found {
		s.mu.Lock()
		s.sharedCache.Add(ck, sn)
		s.mu.Unlock()
	}
	return sn, found, nil
}

// WatchesObserving returns every watch id currently recorded as observing
// path, via PATH_TO_WATCHES.
func (s *Store) WatchesObserving(path string) ([]WatchID, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	_, h := pathkey.Of(path)
	var ids []WatchID
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		ids, err = watchingTx(tx, h)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: watches observing: %w", err)
	}
	return ids, nil
}
