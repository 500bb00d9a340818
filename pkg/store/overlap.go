package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xmhha/pathwatch/pkg/pathkey"
	bolt "go.etcd.io/bbolt"
)

// DetectOverlap computes the structural relationship between two watch
// roots by pure path containment, independent of any store state, per
// SPEC_FULL §B.3 ("WatchOverlap kinds are computed by a pure function").
func DetectOverlap(a WatchID, rootA string, b WatchID, rootB string) WatchOverlap {
	ca, cb := pathkey.Canonicalize(rootA), pathkey.Canonicalize(rootB)

	switch {
	case ca == cb:
		return WatchOverlap{WatchA: a, WatchB: b, OverlapKind: OverlapIntersection, SharedPaths: []string{ca}}
	case pathkey.HasPrefix(ca, cb):
		return WatchOverlap{WatchA: a, WatchB: b, OverlapKind: OverlapNestedChild, SharedPaths: []string{cb}}
	case pathkey.HasPrefix(cb, ca):
		return WatchOverlap{WatchA: a, WatchB: b, OverlapKind: OverlapNestedParent, SharedPaths: []string{ca}}
	}

	aParent, aok := pathkey.Parent(ca)
	bParent, bok := pathkey.Parent(cb)
	if aok && bok && aParent == bParent {
		return WatchOverlap{WatchA: a, WatchB: b, OverlapKind: OverlapSiblingOverlap}
	}

	return WatchOverlap{WatchA: a, WatchB: b, OverlapKind: OverlapNone}
}

// OptimizeOverlaps computes the pairwise overlap for every registered
// watch, and for each pair with a non-None overlap, promotes every path
// that both watches have actually cached (not merely structurally
// contained) into a SharedNodeInfo. It runs as one large transaction
// (spec §4.5(b)).
func (s *Store) OptimizeOverlaps() ([]WatchOverlap, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var overlaps []WatchOverlap
	err := s.db.Update(func(tx *bolt.Tx) error {
		watches, err := allWatchMetadataTx(tx)
		if err != nil {
			return err
		}

		for i := 0; i < len(watches); i++ {
			for j := i + 1; j < len(watches); j++ {
				wa, wb := watches[i], watches[j]
				ov := DetectOverlap(wa.WatchID, wa.RootPath, wb.WatchID, wb.RootPath)
				if ov.OverlapKind == OverlapNone {
					continue
				}
				overlaps = append(overlaps, ov)
				if err := promoteOverlapPairTx(tx, wa, wb); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: optimize overlaps: %w", err)
	}

	s.logger.Info("overlap optimisation complete", "overlaps_found", len(overlaps))
	return overlaps, nil
}

func allWatchMetadataTx(tx *bolt.Tx) ([]WatchMetadata, error) {
	var watches []WatchMetadata
	err := tx.Bucket(bucketWatchRegistry).ForEach(func(_, v []byte) error {
		var wm WatchMetadata
		if err := json.Unmarshal(v, &wm); err != nil {
			return err
		}
		watches = append(watches, wm)
		return nil
	})
	return watches, err
}

// promoteOverlapPairTx finds every path that both wa and wb have actually
// cached nodes for, and promotes each to a SharedNodeInfo, per spec §4.5:
// "for each shared path p the engine creates/updates a SharedNodeInfo with
// membership ⊇ {affected watches}".
func promoteOverlapPairTx(tx *bolt.Tx, wa, wb WatchMetadata) error {
	fc := tx.Bucket(bucketFSCache)
	prefixA := []byte(wa.WatchID)
	c := fc.Cursor()

	for k, v := c.Seek(prefixA); k != nil && hasBytesPrefix(k, prefixA); k, v = c.Next() {
		if len(k) < len(prefixA)+9 {
			continue
		}
		var nodeA FilesystemNode
		if err := json.Unmarshal(v, &nodeA); err != nil {
			continue
		}

		hash := nodeA.Computed.PathHash
		bData := fc.Get(watchScopedKey(wb.WatchID, keyTypeNode, hash))
		if bData == nil {
			continue
		}
		var nodeB FilesystemNode
		if err := json.Unmarshal(bData, &nodeB); err != nil {
			continue
		}

		if err := tx.Bucket(bucketPathToWatches).Put(pathToWatchesKey(hash, wa.WatchID), []byte(wa.WatchID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPathToWatches).Put(pathToWatchesKey(hash, wb.WatchID), []byte(wb.WatchID)); err != nil {
			return err
		}

		canonical := nodeA
		if nodeB.CacheInfo.LastVerified.After(nodeA.CacheInfo.LastVerified) {
			canonical = nodeB
		}

		sn := SharedNodeInfo{
			PathHash:      hash,
			WatchingIDs:   map[WatchID]bool{wa.WatchID: true, wb.WatchID: true},
			CanonicalNode: canonical,
			LastUpdated:   time.Now(),
		}
		if err := putJSON(tx.Bucket(bucketSharedNodes), hash8(hash), sn); err != nil {
			return err
		}
	}
	return nil
}
