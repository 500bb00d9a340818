// Package query implements the Query Surface of spec §4.5/§2(6): read-only
// APIs layered over the Multi-Watch Store, including cross-watch unified
// views and glob-pattern search.
package query

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/0xmhha/pathwatch/pkg/pathkey"
	"github.com/0xmhha/pathwatch/pkg/store"
)

// Querier exposes the read APIs of spec §4.5 over a Store.
type Querier struct {
	st *store.Store
}

// New returns a Querier backed by st.
func New(st *store.Store) *Querier {
	return &Querier{st: st}
}

// ListDirectoryForWatch returns the cached children of path within watch
// w, per spec's list_directory_for_watch.
func (q *Querier) ListDirectoryForWatch(w store.WatchID, path string) ([]store.FilesystemNode, error) {
	return q.st.Children(w, path)
}

// GetNode returns the cached node for path within watch w, per spec's
// get_node (already shared-fallback aware in the store).
func (q *Querier) GetNode(w store.WatchID, path string) (store.FilesystemNode, error) {
	return q.st.GetNode(w, path)
}

// ListAncestors walks path's ancestor chain within watch w, per spec's
// list_ancestors.
func (q *Querier) ListAncestors(w store.WatchID, path string) ([]string, error) {
	return q.st.Ancestors(w, path)
}

// ListDescendants returns every node under path within watch w (path
// itself excluded), per spec's list_descendants.
func (q *Querier) ListDescendants(w store.WatchID, path string) ([]string, error) {
	return q.st.Descendants(w, path)
}

// ListDirectoryUnified unions the children of path across every watch that
// observes it, deduplicating by path and preferring the most recently
// verified entry on conflict, per spec's list_directory_unified.
func (q *Querier) ListDirectoryUnified(path string) ([]store.FilesystemNode, error) {
	watches, err := q.watchesCoveringDirectory(path)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]store.FilesystemNode)
	for _, w := range watches {
		children, err := q.st.Children(w, path)
		if err != nil {
			return nil, err
		}
		for _, node := range children {
			existing, ok := merged[node.Path]
			if !ok || node.CacheInfo.LastVerified.After(existing.CacheInfo.LastVerified) {
				merged[node.Path] = node
			}
		}
	}

	out := make([]store.FilesystemNode, 0, len(merged))
	for _, node := range merged {
		out = append(out, node)
	}
	return out, nil
}

// GetUnifiedNode returns the shared-node entry for path if one has been
// promoted, otherwise aggregates across each watch that individually caches
// path and returns the most recently verified copy, per spec's
// get_unified_node.
func (q *Querier) GetUnifiedNode(path string) (store.FilesystemNode, bool, error) {
	if sn, ok, err := q.st.GetSharedNode(path); err != nil {
		return store.FilesystemNode{}, false, err
	} else if ok {
		return sn.CanonicalNode, true, nil
	}

	parent, ok := pathkey.Parent(path)
	if !ok {
		return store.FilesystemNode{}, false, nil
	}
	watches, err := q.watchesCoveringDirectory(parent)
	if err != nil {
		return store.FilesystemNode{}, false, err
	}

	var best store.FilesystemNode
	found := false
	for _, w := range watches {
		node, err := q.st.GetNode(w, path)
		if err != nil {
			continue
		}
		if !found || node.CacheInfo.LastVerified.After(best.CacheInfo.LastVerified) {
			best = node
			found = true
		}
	}
	return best, found, nil
}

// SearchNodes matches pattern (a glob) against every node path cached
// under watch w. A prefix-only pattern (e.g. "foo*", no wildcard before the
// final "*") is served directly by the PATH_PREFIX index; any other
// pattern falls back to a full descendant scan with glob matching, per
// spec's search_nodes.
func (q *Querier) SearchNodes(w store.WatchID, root, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, store.ErrInvalidPattern
	}

	if prefix, ok := literalPrefix(pattern); ok {
		// PATH_PREFIX is keyed by whole ancestor directories, so the scan
		// starts at the directory that holds the literal prefix.
		dir := root
		if i := strings.LastIndex(prefix, "/"); i > 0 {
			dir = prefix[:i]
		}
		candidates, err := q.st.Descendants(w, dir)
		if err != nil {
			return nil, err
		}
		return filterGlob(g, candidates), nil
	}

	all, err := q.st.Descendants(w, root)
	if err != nil {
		return nil, err
	}
	return filterGlob(g, all), nil
}

func filterGlob(g glob.Glob, paths []string) []string {
	var out []string
	for _, p := range paths {
		if g.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// literalPrefix reports whether pattern is prefix-only: a literal run
// followed by exactly one trailing "*" and nothing else. Patterns with
// "?", character classes, or a "*" anywhere but the very end fall back to
// a full scan.
func literalPrefix(pattern string) (string, bool) {
	if !strings.HasSuffix(pattern, "*") {
		return "", false
	}
	body := pattern[:len(pattern)-1]
	if strings.ContainsAny(body, "*?[]{}") {
		return "", false
	}
	return body, true
}

// watchesCoveringDirectory returns every registered watch whose root path
// contains dir (dir itself included), by comparing dir against each
// registered root; it is the enumeration every unified query uses.
func (q *Querier) watchesCoveringDirectory(dir string) ([]store.WatchID, error) {
	all, err := q.st.ListWatches()
	if err != nil {
		return nil, err
	}
	var out []store.WatchID
	for _, wm := range all {
		if pathkey.HasPrefix(wm.RootPath, dir) {
			out = append(out, wm.WatchID)
		}
	}
	return out, nil
}
