package query

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/pathkey"
	"github.com/0xmhha/pathwatch/pkg/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db"), logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func makeNode(root, path string) store.FilesystemNode {
	canon, hash := pathkey.Of(path)
	var parentHash *pathkey.Hash
	if parent, ok := pathkey.Parent(canon); ok {
		_, ph := pathkey.Of(parent)
		parentHash = &ph
	}
	return store.FilesystemNode{
		Path:     canon,
		NodeType: store.NodeType{Kind: store.NodeFile, Size: 1},
		Computed: store.ComputedFields{
			PathHash:      hash,
			ParentHash:    parentHash,
			CanonicalName: pathkey.BaseName(canon),
			DepthFromRoot: pathkey.Depth(root, canon),
			LastEventKind: events.KindCreate,
		},
		CacheInfo: store.CacheInfo{LastVerified: time.Now()},
	}
}

func TestListDirectoryForWatchAndSearch(t *testing.T) {
	st := openTestStore(t)
	root := "/w"
	wm, err := st.RegisterWatch(root, true)
	require.NoError(t, err)

	require.NoError(t, st.ApplyCreate(wm.WatchID, root, makeNode(root, "/w/a.txt"), events.Event{Kind: events.KindCreate}))
	require.NoError(t, st.ApplyCreate(wm.WatchID, root, makeNode(root, "/w/b.log"), events.Event{Kind: events.KindCreate}))

	q := New(st)

	children, err := q.ListDirectoryForWatch(wm.WatchID, root)
	require.NoError(t, err)
	require.Len(t, children, 2)

	matches, err := q.SearchNodes(wm.WatchID, root, "/w/*.txt")
	require.NoError(t, err)
	require.Equal(t, []string{"/w/a.txt"}, matches)
}

func TestListDirectoryUnifiedAcrossOverlappingWatches(t *testing.T) {
	st := openTestStore(t)
	wmA, err := st.RegisterWatch("/w", true)
	require.NoError(t, err)
	wmB, err := st.RegisterWatch("/w/sub", true)
	require.NoError(t, err)

	require.NoError(t, st.ApplyCreate(wmA.WatchID, "/w", makeNode("/w", "/w/sub/z"), events.Event{Kind: events.KindCreate}))
	require.NoError(t, st.ApplyCreate(wmB.WatchID, "/w/sub", makeNode("/w/sub", "/w/sub/z"), events.Event{Kind: events.KindCreate}))

	q := New(st)
	unified, err := q.ListDirectoryUnified("/w/sub")
	require.NoError(t, err)
	require.Len(t, unified, 1)
	require.Equal(t, "/w/sub/z", unified[0].Path)
}
