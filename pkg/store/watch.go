package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// RegisterWatch creates a new WatchMetadata entry for rootPath and returns
// its generated WatchID. Watch-id generation follows hyper-light-sylk's
// agent packages' convention of github.com/google/uuid for every
// entity-id.
func (s *Store) RegisterWatch(rootPath string, recursive bool) (WatchMetadata, error) {
	if err := s.checkOpen(); err != nil {
		return WatchMetadata{}, err
	}

	now := time.Now()
	wm := WatchMetadata{
		WatchID:    WatchID(uuid.NewString()),
		RootPath:   rootPath,
		Config:     WatchConfigSnapshot{Recursive: recursive},
		CreatedAt:  now,
		LastActive: now,
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketWatchRegistry), []byte(wm.WatchID), wm)
	}); err != nil {
		return WatchMetadata{}, fmt.Errorf("store: register watch: %w", err)
	}

	s.mu.Lock()
	s.registryCache.Add(wm.WatchID, wm)
	s.mu.Unlock()

	s.logger.Info("watch registered", "watch_id", wm.WatchID, "root", rootPath)
	return wm, nil
}

// GetWatch returns the metadata for watch id, consulting the in-memory
// accelerator first and falling back to the store on a miss.
func (s *Store) GetWatch(id WatchID) (WatchMetadata, error) {
	if err := s.checkOpen(); err != nil {
		return WatchMetadata{}, err
	}

	s.mu.RLock()
	if wm, ok := s.registryCache.Get(id); ok {
		s.mu.RUnlock()
		return wm, nil
	}
	s.mu.RUnlock()

	var wm WatchMetadata
	found := false
	if err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWatchRegistry).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &wm)
	}); err != nil {
		return WatchMetadata{}, fmt.Errorf("store: get watch: %w", err)
	}
	if !found {
		return WatchMetadata{}, ErrWatchNotFound
	}

	s.mu.Lock()
	s.registryCache.Add(id, wm)
	s.mu.Unlock()
	return wm, nil
}

// ListWatches returns every registered watch, sorted by no particular
// order (callers needing stability should sort by WatchID themselves).
func (s *Store) ListWatches() ([]WatchMetadata, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var out []WatchMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWatchRegistry).ForEach(func(k, v []byte) error {
			var wm WatchMetadata
			if err := json.Unmarshal(v, &wm); err != nil {
				return err
			}
			out = append(out, wm)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list watches: %w", err)
	}
	return out, nil
}

// touchWatch bumps LastActive and NodeCount by delta for watch id, within
// the caller's event-processing transaction semantics (called by
// ApplyCreate, ApplyUpdate and ApplyRemove).
func (s *Store) touchWatch(tx *bolt.Tx, id WatchID, nodeCountDelta int64) error {
	b := tx.Bucket(bucketWatchRegistry)
	data := b.Get([]byte(id))
	if data == nil {
		return ErrWatchNotFound
	}
	var wm WatchMetadata
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}
	wm.LastActive = time.Now()
	wm.NodeCount += nodeCountDelta
	if wm.NodeCount < 0 {
		wm.NodeCount = 0
	}
	if err := putJSON(b, []byte(id), wm); err != nil {
		return err
	}
	s.invalidateRegistryCache(id)
	return nil
}

// UnregisterWatch removes watch id's metadata. It does not cascade-delete
// the watch's nodes, hierarchy, prefix, or event-log entries; this package
// has no operation that removes them.
func (s *Store) UnregisterWatch(id WatchID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWatchRegistry).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("store: unregister watch: %w", err)
	}
	s.invalidateRegistryCache(id)
	s.logger.Info("watch unregistered", "watch_id", id)
	return nil
}

func putJSON(b *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return b.Put(key, data)
}
