// Package sync implements the Cache Synchroniser of spec §4.4: it
// consumes the semantic event stream produced by the move correlator and
// applies each event to the persistent multi-watch store in a single
// transaction, deriving the FilesystemNode fields a bare events.Event
// does not carry (permissions, timestamps, platform file identity) from a
// fresh stat of the live filesystem.
package sync

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/pathid"
	"github.com/0xmhha/pathwatch/pkg/pathkey"
	"github.com/0xmhha/pathwatch/pkg/store"
)

// Synchroniser applies a watch's semantic event stream to the store.
type Synchroniser struct {
	st      *store.Store
	watch   store.WatchID
	root    string
	logger  logger.Logger
}

// New returns a Synchroniser for watch w rooted at root.
func New(st *store.Store, w store.WatchID, root string, log logger.Logger) *Synchroniser {
	if log == nil {
		log = logger.Noop()
	}
	return &Synchroniser{st: st, watch: w, root: root, logger: log}
}

// Apply dispatches ev to the matching store mutation, per spec §4.4's
// per-kind rules. A failure aborts the current transaction (the store
// method already does this) and is returned for the caller to log and
// continue with subsequent events (spec §7's Synchroniser propagation
// rule); it never panics and never blocks on a partial apply.
func (sy *Synchroniser) Apply(ev events.Event) error {
	switch ev.Kind {
	case events.KindCreate:
		return sy.applyCreate(ev)
	case events.KindWrite, events.KindChmod, events.KindOther:
		return sy.applyUpdate(ev)
	case events.KindRemove:
		return sy.applyRemove(ev)
	case events.KindMove:
		return sy.applyMove(ev)
	default:
		return fmt.Errorf("sync: unknown event kind %q", ev.Kind)
	}
}

func (sy *Synchroniser) applyCreate(ev events.Event) error {
	node, err := sy.buildNode(ev.Path, ev.Kind)
	if err != nil {
		return fmt.Errorf("sync: build node for create: %w", err)
	}
	return sy.st.ApplyCreate(sy.watch, sy.root, node, ev)
}

func (sy *Synchroniser) applyUpdate(ev events.Event) error {
	node, err := sy.buildNode(ev.Path, ev.Kind)
	if err != nil {
		return fmt.Errorf("sync: build node for update: %w", err)
	}
	return sy.st.ApplyUpdate(sy.watch, node, ev)
}

func (sy *Synchroniser) applyRemove(ev events.Event) error {
	return sy.st.ApplyRemove(sy.watch, sy.root, ev.Path, ev)
}

func (sy *Synchroniser) applyMove(ev events.Event) error {
	if ev.Move == nil {
		return fmt.Errorf("sync: move event missing move_data")
	}
	return sy.st.ApplyMove(sy.watch, sy.root, ev.Move.SourcePath, ev.Move.DestinationPath, ev)
}

// buildNode stats path fresh and assembles a store.FilesystemNode,
// deriving the computed fields (path_hash, parent_hash, depth, canonical
// name) from pkg/pathkey and the platform identity from pkg/pathid.
func (sy *Synchroniser) buildNode(path string, kind events.Kind) (store.FilesystemNode, error) {
	canonical, hash := pathkey.Of(path)

	info, statErr := os.Lstat(canonical)
	now := time.Now()

	nt := store.NodeType{Kind: store.NodeFile}
	var meta store.NodeMetadata
	if statErr == nil {
		meta.ModifiedAt = info.ModTime()
		meta.Permissions = uint32(info.Mode().Perm())

		switch {
		case info.IsDir():
			nt.Kind = store.NodeDirectory
		case info.Mode()&os.ModeSymlink != 0:
			nt.Kind = store.NodeSymlink
			if target, err := os.Readlink(canonical); err == nil {
				nt.Target = target
				if _, err := os.Stat(canonical); err == nil {
					nt.Resolved = true
				}
			}
		default:
			nt.Kind = store.NodeFile
			nt.Size = info.Size()
		}
	}

	if id, size, isDir, ok := pathid.Stat(canonical); ok {
		if runtime.GOOS == "windows" {
			meta.WindowsFileID = uint64(id)
		} else {
			meta.Inode = uint64(id)
		}
		if isDir {
			nt.Kind = store.NodeDirectory
		} else if nt.Kind == store.NodeFile {
			nt.Size = size
		}
	}

	var parentHash *pathkey.Hash
	if parent, ok := pathkey.Parent(canonical); ok && pathkey.HasPrefix(sy.root, parent) {
		_, ph := pathkey.Of(parent)
		parentHash = &ph
	}

	node := store.FilesystemNode{
		Path:     canonical,
		NodeType: nt,
		Metadata: meta,
		CacheInfo: store.CacheInfo{
			CachedAt:     now,
			LastVerified: now,
			CacheVersion: 1,
			NeedsRefresh: statErr != nil,
		},
		Computed: store.ComputedFields{
			DepthFromRoot: pathkey.Depth(sy.root, canonical),
			PathHash:      hash,
			ParentHash:    parentHash,
			CanonicalName: pathkey.BaseName(canonical),
			LastEventKind: kind,
		},
	}
	return node, nil
}
