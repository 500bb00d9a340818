package pathtype

import (
	"testing"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/stretchr/testify/require"
)

func TestInferPrefersMetadataCache(t *testing.T) {
	inf := New(
		func(path string) (bool, bool) { return true, true },
		nil, nil,
	)
	got := inf.Infer(events.RawEvent{Path: "/w/noext"})
	require.True(t, got.IsDirectory)
	require.Equal(t, events.SourceMetadataCache, got.Source)
	require.True(t, got.Confident)
}

func TestInferFallsBackToHierarchy(t *testing.T) {
	inf := New(
		func(string) (bool, bool) { return false, false },
		func(string) (bool, bool) { return true, true },
		nil,
	)
	got := inf.Infer(events.RawEvent{Path: "/w/dir"})
	require.True(t, got.IsDirectory)
	require.Equal(t, events.SourceHierarchyCache, got.Source)
}

func TestInferFallsBackToFilenameHeuristic(t *testing.T) {
	inf := New(nil, nil, nil)

	got := inf.Infer(events.RawEvent{Path: "/w/report.txt"})
	require.False(t, got.IsDirectory)
	require.Equal(t, events.SourceFilenameHeuristic, got.Source)
	require.False(t, got.Confident)

	got = inf.Infer(events.RawEvent{Path: "/w/noext"})
	require.True(t, got.IsDirectory)
}
