package movedetect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Timeout:                500 * time.Millisecond,
		ConfidenceThreshold:    0.6,
		WeightSize:             0.3,
		WeightTime:             0.2,
		WeightInode:            0.3,
		WeightHash:             0.1,
		WeightName:             0.1,
		MaxPendingEvents:       128,
		ContentHashMaxFileSize: 1 << 20,
	}
}

// TestRenameWithinSameDirectoryPairsAsMove exercises scenario S1: a plain
// rename delivers Remove(old) then Create(new) within the timeout window,
// and must correlate into a single Move rather than a Remove+Create pair.
func TestRenameWithinSameDirectoryPairsAsMove(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("payload"), 0o644))

	cfg := testConfig()
	c := New(cfg, logger.Noop())

	// Prime the recent-metadata cache as the engine would via an earlier
	// Create/Write observation, then sweep that now-stale pending Create
	// out of the pool (it already has a resolved node in the store and
	// is unrelated to the rename pairing below), and remove the file for
	// real so Stat fails and the correlator must fall back to the cache.
	primeTime := time.Now()
	c.OnCreate(events.RawEvent{Kind: events.RawCreate, Path: oldPath, Timestamp: primeTime}, nil)
	c.Sweep(primeTime.Add(cfg.Timeout * 2))
	require.NoError(t, os.Rename(oldPath, newPath))

	removeOut := c.OnRemove(events.RawEvent{Kind: events.RawRenameFrom, Path: oldPath, Timestamp: time.Now()}, nil)
	require.Nil(t, removeOut, "a Remove with no pending Create must emit nothing yet")

	createOut := c.OnCreate(events.RawEvent{Kind: events.RawRenameTo, Path: newPath, Timestamp: time.Now()}, nil)
	require.Len(t, createOut, 1)
	require.Equal(t, events.KindMove, createOut[0].Kind)
	require.Equal(t, oldPath, createOut[0].Move.SourcePath)
	require.Equal(t, newPath, createOut[0].Move.DestinationPath)
	require.Equal(t, events.MethodInodeMatching, createOut[0].Move.DetectionMethod)

	stats := c.Stats()
	require.Zero(t, stats.PendingRemoves.Total)
	require.Zero(t, stats.PendingCreates.Total)
}

// TestCrossDirectoryMoveNeverSelfMatches exercises scenario S2: moving a
// file from one directory into another must not spuriously pair with an
// unrelated pending entry at the very same path (rule 5).
func TestCrossDirectoryMoveNeverSelfMatches(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	src := filepath.Join(dir, "f.txt")
	dst := filepath.Join(sub, "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("abc"), 0o644))

	cfg := testConfig()
	c := New(cfg, logger.Noop())
	primeTime := time.Now()
	c.OnCreate(events.RawEvent{Kind: events.RawCreate, Path: src, Timestamp: primeTime}, nil)
	c.Sweep(primeTime.Add(cfg.Timeout * 2))

	require.NoError(t, os.Rename(src, dst))

	removeOut := c.OnRemove(events.RawEvent{Kind: events.RawRenameFrom, Path: src, Timestamp: time.Now()}, nil)
	require.Nil(t, removeOut)

	createOut := c.OnCreate(events.RawEvent{Kind: events.RawRenameTo, Path: dst, Timestamp: time.Now()}, nil)
	require.Len(t, createOut, 1)
	require.Equal(t, events.KindMove, createOut[0].Kind)
	require.Equal(t, src, createOut[0].Move.SourcePath)
	require.Equal(t, dst, createOut[0].Move.DestinationPath)
}

// TestUnmatchedRemoveExpiresAsFinalRemove exercises scenario S3: a Remove
// with no corresponding Create before the timeout elapses must surface as
// an ordinary Remove once swept.
func TestUnmatchedRemoveExpiresAsFinalRemove(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	c := New(cfg, logger.Noop())

	path := "/w/gone.txt"
	out := c.OnRemove(events.RawEvent{Kind: events.RawRemove, Path: path, Timestamp: time.Now()}, nil)
	require.Nil(t, out)

	swept := c.Sweep(time.Now().Add(cfg.Timeout * 2))
	require.Len(t, swept, 1)
	require.Equal(t, events.KindRemove, swept[0].Kind)
	require.Equal(t, path, swept[0].Path)

	require.Zero(t, c.Stats().PendingRemoves.Total)
}

// TestUnmatchedCreateExpiresSilently: an unpaired Create was already
// emitted eagerly, so its pool entry must vanish on sweep without
// producing any further event (property law 1: never two events for one
// rename, and a lone Create never becomes a Move after the fact once its
// window has closed).
func TestUnmatchedCreateExpiresSilently(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	c := New(cfg, logger.Noop())

	path := "/w/brandnew.txt"
	out := c.OnCreate(events.RawEvent{Kind: events.RawCreate, Path: path, Timestamp: time.Now()}, nil)
	require.Len(t, out, 1)
	require.Equal(t, events.KindCreate, out[0].Kind)

	swept := c.Sweep(time.Now().Add(cfg.Timeout * 2))
	require.Empty(t, swept)
	require.Zero(t, c.Stats().PendingCreates.Total)
}

// TestPendingPoolBoundedByMaxSize exercises property law 7: the pending
// pools never grow without bound, regardless of how many unmatched
// Removes arrive.
func TestPendingPoolBoundedByMaxSize(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPendingEvents = 4
	c := New(cfg, logger.Noop())

	for i := 0; i < 10; i++ {
		path := filepath.Join("/w", "f"+string(rune('a'+i)))
		out := c.OnRemove(events.RawEvent{Kind: events.RawRemove, Path: path, Timestamp: time.Now()}, nil)
		require.Nil(t, out)
	}

	require.Equal(t, 4, c.Stats().PendingRemoves.Total)
}

// TestStopFlushesPendingRemovesAsFinalEvents covers spec §4.3's
// cancellation contract: shutdown must not silently drop a pending Remove
// that never got a chance to pair.
func TestStopFlushesPendingRemovesAsFinalEvents(t *testing.T) {
	c := New(testConfig(), logger.Noop())

	c.OnRemove(events.RawEvent{Kind: events.RawRemove, Path: "/w/a.txt", Timestamp: time.Now()}, nil)
	c.OnRemove(events.RawEvent{Kind: events.RawRemove, Path: "/w/b.txt", Timestamp: time.Now()}, nil)
	c.OnCreate(events.RawEvent{Kind: events.RawCreate, Path: "/w/c.txt", Timestamp: time.Now()}, nil)

	flushed := c.Stop()
	require.Len(t, flushed, 2)
	for _, ev := range flushed {
		require.Equal(t, events.KindRemove, ev.Kind)
	}

	stats := c.Stats()
	require.Zero(t, stats.PendingRemoves.Total)
	require.Zero(t, stats.PendingCreates.Total)
}
