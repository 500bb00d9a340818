package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xmhha/pathwatch/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	bolt "go.etcd.io/bbolt"
)

// schemaVersion is the version byte prepended to the meta table's version
// key (spec §6: "A version byte is prepended to the store metadata
// table; incompatible versions are refused with a clear diagnostic").
const schemaVersion = 1

var metaVersionKey = []byte("schema_version")

// registryCacheSize and sharedNodeCacheSize bound the in-memory
// accelerator caches SPEC_FULL §B.2 wires golang-lru into: WATCH_REGISTRY
// and SHARED_NODES entries are small and hot, but the store never trusts
// them over a fresh read (spec §9: "treated as accelerators, not sources
// of truth").
const (
	registryCacheSize   = 256
	sharedNodeCacheSize = 4096
)

// Store is the embedded transactional multi-watch engine described in
// spec §4.5. A single bbolt database backs every registered watch; writers
// are serialized by bbolt's single-writer discipline, and readers run
// concurrently on their own transactions.
type Store struct {
	db     *bolt.DB
	logger logger.Logger

	mu     sync.RWMutex // guards closed and the accelerator caches below
	closed bool

	registryCache *lru.Cache[WatchID, WatchMetadata]
	sharedCache   *lru.Cache[string, SharedNodeInfo] // keyed by hash8 hex
}

// Open opens (creating if necessary) the bbolt database at path and
// initializes every logical table bucket. log may be logger.Noop().
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Noop()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %q: %w", b, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		existing := meta.Get(metaVersionKey)
		if existing == nil {
			return meta.Put(metaVersionKey, []byte{schemaVersion})
		}
		if len(existing) != 1 || existing[0] != schemaVersion {
			got := byte(0)
			if len(existing) == 1 {
				got = existing[0]
			}
			return fmt.Errorf("%w: database has version %d, binary expects %d",
				ErrSchemaVersionMismatch, got, schemaVersion)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	registryCache, _ := lru.New[WatchID, WatchMetadata](registryCacheSize)
	sharedCache, _ := lru.New[string, SharedNodeInfo](sharedNodeCacheSize)

	s := &Store{
		db:            db,
		logger:        log,
		registryCache: registryCache,
		sharedCache:   sharedCache,
	}

	log.Info("store opened", "path", path)
	return s, nil
}

// Close flushes and closes the underlying database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	s.logger.Info("store closed")
	return nil
}

// checkOpen returns ErrStoreClosed if Close has already run.
func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// invalidateRegistryCache drops watch w from the in-memory accelerator,
// forcing the next read to go to the store.
func (s *Store) invalidateRegistryCache(w WatchID) {
	s.mu.Lock()
	s.registryCache.Remove(w)
	s.mu.Unlock()
}

func (s *Store) invalidateSharedCache(key string) {
	s.mu.Lock()
	s.sharedCache.Remove(key)
	s.mu.Unlock()
}
