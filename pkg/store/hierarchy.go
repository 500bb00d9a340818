package store

import (
	"encoding/json"
	"fmt"

	"github.com/0xmhha/pathwatch/pkg/pathkey"
	bolt "go.etcd.io/bbolt"
)

// Children returns the cached nodes directly beneath path in watch w's
// hierarchy, via the HIERARCHY multimap (spec §4.5's
// list_directory_for_watch).
func (s *Store) Children(w WatchID, path string) ([]FilesystemNode, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	_, parentHash := pathkey.Of(path)
	bound := hierarchyPrefix(w, parentHash)

	var nodes []FilesystemNode
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketHierarchy).Cursor()
		fc := tx.Bucket(bucketFSCache)
		sb := tx.Bucket(bucketSharedNodes)

		for k, v := c.Seek(bound); k != nil && hasBytesPrefix(k, bound); k, v = c.Next() {
			childHash := parseHash8(v)

			data := fc.Get(watchScopedKey(w, keyTypeNode, childHash))
			if data != nil {
				var node FilesystemNode
				if err := json.Unmarshal(data, &node); err != nil {
					return err
				}
				nodes = append(nodes, node)
				continue
			}

			shared := sb.Get(hash8(childHash))
			if shared != nil {
				var sn SharedNodeInfo
				if err := json.Unmarshal(shared, &sn); err != nil {
					return err
				}
				if sn.WatchingIDs[w] {
					nodes = append(nodes, sn.CanonicalNode)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: children: %w", err)
	}
	return nodes, nil
}

// ParentOf returns the parent path of path in watch w's hierarchy, via
// PARENT_LOOKUP.
func (s *Store) ParentOf(w WatchID, path string) (string, bool, error) {
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}
	_, h := pathkey.Of(path)

	var parentPath string
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketParentLookup).Get(watchScopedKey(w, keyTypeParentOf, h))
		if data == nil {
			return nil
		}
		parentHash := parseHash8(data)
		nodeData := tx.Bucket(bucketFSCache).Get(watchScopedKey(w, keyTypeNode, parentHash))
		if nodeData == nil {
			return nil
		}
		var node FilesystemNode
		if err := json.Unmarshal(nodeData, &node); err != nil {
			return err
		}
		parentPath = node.Path
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("store: parent of: %w", err)
	}
	return parentPath, found, nil
}

// Ancestors walks PARENT_LOOKUP from path up to the watch root, guarding
// against cycles with a visited set per spec §9 ("cycle-guard visited sets
// are nevertheless used during ancestor traversal to survive invariant
// violations caused by corruption or concurrent external mutation").
func (s *Store) Ancestors(w WatchID, path string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var ancestors []string
	visited := make(map[string]bool)
	cur := path

	for {
		parent, ok, err := s.ParentOf(w, cur)
		if err != nil {
			return nil, err
		}
		if !ok || parent == "" {
			break
		}
		if visited[parent] {
			s.logger.Warn("ancestor cycle detected, truncating traversal", "watch_id", w, "path", path)
			break
		}
		visited[parent] = true
		ancestors = append(ancestors, parent)
		cur = parent
	}
	return ancestors, nil
}

// Descendants returns the canonical path of every node under path in
// watch w's namespace (path itself excluded), via the PATH_PREFIX index.
func (s *Store) Descendants(w WatchID, path string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var paths []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		paths, err = descendantsTx(tx, w, path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: descendants: %w", err)
	}
	return paths, nil
}
