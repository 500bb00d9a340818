// Package engine wires the Source Adapter, Path-Type Inferrer, Move
// Correlator, Cache Synchroniser, and Multi-Watch Store into the single
// runtime handle of spec §6: Start returns a WatcherHandle plus the
// EventStream consumers read from.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/0xmhha/pathwatch/pkg/config"
	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/movedetect"
	"github.com/0xmhha/pathwatch/pkg/pathtype"
	"github.com/0xmhha/pathwatch/pkg/source"
	"github.com/0xmhha/pathwatch/pkg/store"
	"github.com/0xmhha/pathwatch/pkg/sync"
	"github.com/0xmhha/pathwatch/pkg/werr"
)

// EventStream is the output channel a caller of Start reads Events from.
// It closes only after a full drain completes (spec §5's cancellation
// contract), so consumers see a clean end-of-stream.
type EventStream = <-chan events.Event

// HandleStats is the snapshot returned by WatcherHandle.Stats, per spec
// §6's stats() operation.
type HandleStats struct {
	Watch       store.WatchMetadata
	Global      store.CounterTuple
	MoveDetect  movedetect.Stats
	LastError   error
	LastErrorAt time.Time
}

// WatcherHandle is the runtime handle of spec §6.
type WatcherHandle interface {
	// Stop propagates a shutdown signal and blocks until every component
	// has drained. Idempotent.
	Stop() error

	// Stats returns a point-in-time snapshot of counters and pending-pool
	// sizes.
	Stats() (HandleStats, error)
}

// Start constructs the full pipeline described by cfg and returns a
// handle plus the event stream, per spec §6's "Construction returns
// (WatcherHandle, EventStream)".
func Start(cfg config.WatcherConfig, log logger.Logger) (WatcherHandle, EventStream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, werr.Wrap(werr.Configuration, err)
	}
	if log == nil {
		log = logger.Default()
	}

	st, err := store.Open(cfg.Store.DatabasePath, log)
	if err != nil {
		return nil, nil, werr.Wrap(werr.Store, fmt.Errorf("engine: open store: %w", err))
	}

	wm, err := st.RegisterWatch(cfg.Path, cfg.Recursive)
	if err != nil {
		_ = st.Close()
		return nil, nil, werr.Wrap(werr.Store, fmt.Errorf("engine: register watch: %w", err))
	}

	excludes, err := source.CompileExcludes(cfg.ExcludePatterns)
	if err != nil {
		_ = st.Close()
		return nil, nil, werr.Wrap(werr.Configuration, fmt.Errorf("engine: compile exclude patterns: %w", err))
	}

	src, err := source.New(source.Config{BufferSize: cfg.EventBufferSize, ExcludeGlobs: excludes}, log)
	if err != nil {
		_ = st.Close()
		return nil, nil, werr.Wrap(werr.Filesystem, fmt.Errorf("engine: create source adapter: %w", err))
	}

	corr := movedetect.New(movedetect.Config{
		Timeout:                cfg.MoveDetector.Timeout,
		ConfidenceThreshold:    cfg.MoveDetector.ConfidenceThreshold,
		WeightSize:             cfg.MoveDetector.WeightSize,
		WeightTime:             cfg.MoveDetector.WeightTime,
		WeightInode:            cfg.MoveDetector.WeightInode,
		WeightHash:             cfg.MoveDetector.WeightHash,
		WeightName:             cfg.MoveDetector.WeightName,
		MaxPendingEvents:       cfg.MoveDetector.MaxPendingEvents,
		ContentHashMaxFileSize: cfg.MoveDetector.ContentHashMaxFileSize,
	}, log)

	inferrer := pathtype.New(
		corr.MetadataLookup(),
		hierarchyLookup(st, wm.WatchID),
		corr.PendingCreateLookup(),
	)

	syncer := sync.New(st, wm.WatchID, cfg.Path, log)

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx, cfg.Path, cfg.Recursive); err != nil {
		cancel()
		_ = st.Close()
		return nil, nil, werr.Wrap(werr.Filesystem, fmt.Errorf("engine: start source adapter: %w", err))
	}

	out := make(chan events.Event, cfg.EventBufferSize)
	bgDone := make(chan struct{})

	h := &handle{
		st:     st,
		watch:  wm.WatchID,
		src:    src,
		corr:   corr,
		cancel: cancel,
		done:   make(chan struct{}),
		bgDone: bgDone,
	}

	p := &pipeline{
		cfg:      cfg,
		logger:   log,
		store:    st,
		watch:    wm.WatchID,
		root:     cfg.Path,
		source:   src,
		inferrer: inferrer,
		corr:     corr,
		syncer:   syncer,
		out:      out,
		handle:   h,
	}

	go p.run(ctx)
	go runBackgroundJobs(ctx, st, cfg.Store, log, bgDone)

	return h, out, nil
}

// hierarchyLookup adapts the store's Children query to
// pathtype.HierarchyLookup: a parent with any cached children is treated
// as a directory.
func hierarchyLookup(st *store.Store, w store.WatchID) pathtype.HierarchyLookup {
	return func(path string) (bool, bool) {
		children, err := st.Children(w, path)
		if err != nil {
			return false, false
		}
		return len(children) > 0, len(children) > 0
	}
}
