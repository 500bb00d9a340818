package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAdapterEmitsCreateAndWrite(t *testing.T) {
	dir := t.TempDir()

	a, err := New(Config{BufferSize: 16}, logger.Noop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx, dir, true))

	filePath := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hi"), 0o644))

	seen := map[events.RawKind]bool{}
	deadline := time.After(2 * time.Second)
	for !seen[events.RawCreate] || !seen[events.RawModify] {
		select {
		case ev := <-a.Events():
			seen[ev.Kind] = true
			if ev.Kind == events.RawCreate {
				require.Equal(t, filePath, ev.Path)
			}
		case <-deadline:
			t.Fatal("timed out waiting for create and write events")
		}
	}
}

func TestAdapterExcludesMatchingPaths(t *testing.T) {
	dir := t.TempDir()
	globs, err := CompileExcludes([]string{filepath.Join(dir, "*.tmp")})
	require.NoError(t, err)

	a, err := New(Config{BufferSize: 16, ExcludeGlobs: globs}, logger.Noop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx, dir, true))

	excluded := filepath.Join(dir, "ignore.tmp")
	kept := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(excluded, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-a.Events():
			require.NotEqual(t, excluded, ev.Path)
			if ev.Path == kept {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for non-excluded event")
		}
	}
}

func TestAdapterRejectsDoubleStart(t *testing.T) {
	dir := t.TempDir()
	a, err := New(Config{BufferSize: 4}, logger.Noop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Start(ctx, dir, false))
	require.ErrorIs(t, a.Start(ctx, dir, false), ErrAlreadyStarted)
}
