package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/pathkey"
	bolt "go.etcd.io/bbolt"
)

// appendEventRecordTx appends ev to the append-only EVENT_LOG in the same
// transaction as the triggering node mutation (invariant I7). The log is
// never mutated in place; RetentionSweep is the only caller allowed to
// delete entries (invariant I6).
func appendEventRecordTx(tx *bolt.Tx, w WatchID, ev events.Event) error {
	_, hash := pathkey.Of(ev.Path)
	rec := EventRecord{
		RecordID:  ev.ID,
		WatchID:   w,
		Path:      ev.Path,
		Kind:      ev.Kind,
		Timestamp: ev.Timestamp,
		Payload:   ev,
	}
	key := eventLogKey(w, hash, ev.Timestamp.UnixNano(), ev.ID)
	return putJSON(tx.Bucket(bucketEventLog), key, rec)
}

// EventLogForPath returns every EventRecord for (w, path), ordered by
// timestamp ascending, as guaranteed by the EVENT_LOG key encoding.
func (s *Store) EventLogForPath(w WatchID, path string) ([]EventRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	_, hash := pathkey.Of(path)
	bound := eventLogScanBound(w, hash)

	var records []EventRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEventLog).Cursor()
		for k, v := c.Seek(bound); k != nil && hasBytesPrefix(k, bound); k, v = c.Next() {
			var rec EventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: event log for path: %w", err)
	}
	return records, nil
}

// EventLogForWatch returns every EventRecord recorded for watch w, ordered
// by (path_hash, timestamp) since that is the EVENT_LOG key order; callers
// needing global time order across paths should sort the result.
func (s *Store) EventLogForWatch(w WatchID) ([]EventRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	bound := eventLogWatchScanBound(w)

	var records []EventRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEventLog).Cursor()
		for k, v := c.Seek(bound); k != nil && hasBytesPrefix(k, bound); k, v = c.Next() {
			var rec EventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: event log for watch: %w", err)
	}
	return records, nil
}

// RetentionSweep deletes EventRecords older than cutoff, one
// (watch, path) group at a time, always removing a contiguous oldest
// prefix so the retained records remain a contiguous suffix by timestamp
// (property law 4). It ignores long-lived readers, per spec §4.6 and
// SPEC_FULL §B.4's ReaderFence decision.
func (s *Store) RetentionSweep(cutoff time.Time) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEventLog)
		c := b.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec EventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, append([]byte{}, k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: retention sweep: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("retention sweep complete", "records_deleted", deleted)
	}
	return deleted, nil
}
