package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/werr"
)

// adapter implements Adapter using fsnotify.
type adapter struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	eventsCh       chan events.RawEvent
	inconsistentCh chan Inconsistency
	errorsCh       chan error

	recursive bool

	mu        sync.RWMutex
	running   bool
	closed    bool
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a source adapter backed by fsnotify.
func New(cfg Config, log logger.Logger) (Adapter, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	a := &adapter{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		eventsCh:       make(chan events.RawEvent, cfg.BufferSize),
		inconsistentCh: make(chan Inconsistency, cfg.BufferSize),
		errorsCh:       make(chan error, 16),
		stopCh:         make(chan struct{}),
	}

	log.Info("source adapter created", "buffer_size", cfg.BufferSize)
	return a, nil
}

// Start implements Adapter.Start.
func (a *adapter) Start(ctx context.Context, root string, recursive bool) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAdapterClosed
	}
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.running = true
	a.recursive = recursive
	a.mu.Unlock()

	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}

	if err := a.addPathRecursive(root); err != nil {
		return fmt.Errorf("failed to add root %s: %w", root, err)
	}

	a.logger.Info("source adapter started", "root", root, "recursive", recursive)

	a.mu.Lock()
	a.started = true
	a.stoppedCh = make(chan struct{})
	a.mu.Unlock()

	go a.processEvents(ctx)

	return nil
}

// Events implements Adapter.Events.
func (a *adapter) Events() <-chan events.RawEvent {
	return a.eventsCh
}

// Inconsistent implements Adapter.Inconsistent.
func (a *adapter) Inconsistent() <-chan Inconsistency {
	return a.inconsistentCh
}

// Errors implements Adapter.Errors.
func (a *adapter) Errors() <-chan error {
	return a.errorsCh
}

// Close implements Adapter.Close.
func (a *adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	running, started, stopped := a.running, a.started, a.stoppedCh
	a.running = false

	// Drop the lock before waiting on the goroutine's exit signal:
	// processEvents never acquires a.mu, but holding it here serves no
	// purpose and would only delay concurrent readers of Events()/Errors().
	a.mu.Unlock()
	if running {
		close(a.stopCh)
	}
	if started {
		<-stopped
	}
	a.mu.Lock()

	close(a.eventsCh)
	close(a.inconsistentCh)
	close(a.errorsCh)

	if err := a.fsw.Close(); err != nil {
		a.logger.Fail("failed to close fsnotify watcher", werr.Wrap(werr.Filesystem, err))
		return fmt.Errorf("failed to close source adapter: %w", err)
	}

	a.logger.Info("source adapter closed")
	return nil
}

// processEvents drains fsnotify's channels until cancelled.
func (a *adapter) processEvents(ctx context.Context) {
	defer close(a.stoppedCh)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("source adapter stopped", "reason", "context cancelled")
			return

		case <-a.stopCh:
			a.logger.Info("source adapter stopped", "reason", "stop signal")
			return

		case ev, ok := <-a.fsw.Events:
			if !ok {
				a.logger.Warn("fsnotify events channel closed")
				return
			}
			a.handleEvent(ev)

		case err, ok := <-a.fsw.Errors:
			if !ok {
				a.logger.Warn("fsnotify errors channel closed")
				return
			}
			a.sendError(err)
		}
	}
}

// handleEvent normalises one fsnotify event into a RawEvent and emits it,
// per spec §4.1. A directory Create under a recursive watch also extends
// the underlying fsnotify watch set to cover the new subtree.
func (a *adapter) handleEvent(ev fsnotify.Event) {
	if a.isExcluded(ev.Name) {
		return
	}

	var kind events.RawKind
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		kind = events.RawCreate
	case ev.Op&fsnotify.Write == fsnotify.Write:
		kind = events.RawModify
	case ev.Op&fsnotify.Remove == fsnotify.Remove:
		kind = events.RawRemove
	case ev.Op&fsnotify.Rename == fsnotify.Rename:
		// fsnotify only fires Rename on the vanished source path; the
		// appeared destination arrives separately as an ordinary Create.
		kind = events.RawRenameFrom
	case ev.Op&fsnotify.Chmod == fsnotify.Chmod:
		kind = events.RawChmod
	default:
		a.logger.Debug("unknown fsnotify operation", "op", ev.Op, "path", ev.Name)
		return
	}

	if kind == events.RawCreate && a.recursive {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := a.addPathRecursive(ev.Name); err != nil {
				a.logger.Warn("failed to extend watch to new directory", "path", ev.Name, "error", err)
			}
		}
	}

	a.emit(events.RawEvent{Kind: kind, Path: ev.Name, Timestamp: time.Now()})
}

// emit delivers ev through the bounded channel with drop-oldest overflow
// handling, per spec §4.1.
func (a *adapter) emit(ev events.RawEvent) {
	select {
	case a.eventsCh <- ev:
		return
	default:
	}

	select {
	case dropped := <-a.eventsCh:
		a.flagInconsistent(dropped.Path)
	default:
	}

	select {
	case a.eventsCh <- ev:
	default:
		a.flagInconsistent(ev.Path)
	}
}

func (a *adapter) flagInconsistent(path string) {
	select {
	case a.inconsistentCh <- Inconsistency{Path: path, Timestamp: time.Now()}:
	default:
		a.logger.Warn("inconsistency channel full, dropping notice", "path", path)
	}
}

func (a *adapter) sendError(err error) {
	select {
	case a.errorsCh <- err:
	default:
		a.logger.Warn("error channel full, dropping error", "error", err)
	}
}

func (a *adapter) isExcluded(path string) bool {
	for _, m := range a.config.ExcludeGlobs {
		if m.Match(path) {
			return true
		}
	}
	return false
}

// addPathRecursive adds path and, if recursive watching is enabled, every
// subdirectory beneath it.
func (a *adapter) addPathRecursive(path string) error {
	if err := a.fsw.Add(path); err != nil {
		return fmt.Errorf("failed to add path: %w", err)
	}
	a.logger.Debug("added watch path", "path", path)

	if !a.recursive {
		return nil
	}

	return filepath.Walk(path, func(subPath string, info os.FileInfo, err error) error {
		if err != nil {
			a.logger.Warn("error walking path", "path", subPath, "error", err)
			return nil
		}
		if !info.IsDir() || subPath == path {
			return nil
		}
		if a.isExcluded(subPath) {
			return filepath.SkipDir
		}
		if addErr := a.fsw.Add(subPath); addErr != nil {
			a.logger.Warn("failed to add subdirectory", "path", subPath, "error", addErr)
			return nil
		}
		a.logger.Debug("added watch subdirectory", "path", subPath)
		return nil
	})
}
