package engine

import (
	"context"
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

// sweepIntervalFraction bounds how often the pipeline checks the pending
// pools for timed-out entries: a fraction of the configured timeout keeps
// a Remove's worst-case wait close to move_detector.timeout itself.
const sweepIntervalFraction = 4

// pipeline is the consumer thread of spec §5's scheduling model: it owns
// the Correlator and drives the Synchroniser, dispatching every raw event
// the Source Adapter produces.
type pipeline struct {
	cfg      config.WatcherConfig
	logger   logger.Logger
	store    *store.Store
	watch    store.WatchID
	root     string
	source   source.Adapter
	inferrer *pathtype.Inferrer
	corr     *movedetect.Correlator
	syncer   *sync.Synchroniser
	out      chan events.Event
	handle   *handle
}

func (p *pipeline) run(ctx context.Context) {
	defer close(p.out)

	interval := p.cfg.MoveDetector.Timeout / sweepIntervalFraction
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return

		case raw, ok := <-p.source.Events():
			if !ok {
				p.shutdown()
				return
			}
			p.handleRaw(raw)

		case inc, ok := <-p.source.Inconsistent():
			if ok {
				p.logger.Warn("path flagged possibly inconsistent by overflow", "path", inc.Path)
			}

		case err, ok := <-p.source.Errors():
			if ok {
				p.handle.recordError(werr.Wrap(werr.Filesystem, err))
			}

		case t := <-ticker.C:
			p.emitAll(p.corr.Sweep(t))
		}
	}
}

// handleRaw dispatches one RawEvent through the inferrer/correlator and
// applies whatever semantic Events result to the store, per spec §4.1-4.4.
func (p *pipeline) handleRaw(raw events.RawEvent) {
	switch raw.Kind {
	case events.RawCreate:
		p.emitAll(p.corr.OnCreate(raw, p.inferrer))

	case events.RawRemove, events.RawRenameFrom:
		p.emitAll(p.corr.OnRemove(raw, p.inferrer))

	case events.RawModify:
		heur := p.inferrer.Infer(raw)
		p.emitOne(events.Event{
			ID: rawEventID(raw), Kind: events.KindWrite, Path: raw.Path,
			Timestamp: raw.Timestamp, IsDirectory: heur.IsDirectory,
		})

	case events.RawChmod:
		heur := p.inferrer.Infer(raw)
		p.emitOne(events.Event{
			ID: rawEventID(raw), Kind: events.KindChmod, Path: raw.Path,
			Timestamp: raw.Timestamp, IsDirectory: heur.IsDirectory,
		})

	default:
		heur := p.inferrer.Infer(raw)
		p.emitOne(events.Event{
			ID: rawEventID(raw), Kind: events.KindOther, Path: raw.Path,
			Timestamp: raw.Timestamp, IsDirectory: heur.IsDirectory,
		})
	}
}

func (p *pipeline) emitAll(evs []events.Event) {
	for _, ev := range evs {
		p.emitOne(ev)
	}
}

// emitOne applies ev to the store and then forwards it to the output
// stream. A transaction abort is logged and recorded, and the event is
// still forwarded, per spec §7: "Synchroniser failures abort
// the current transaction, emit a diagnostic record, and continue."
func (p *pipeline) emitOne(ev events.Event) {
	if err := p.syncer.Apply(ev); err != nil {
		wrapped := werr.Wrap(werr.Store, err)
		p.logger.Fail("synchroniser failed to apply event", wrapped, "kind", ev.Kind, "path", ev.Path)
		p.handle.recordError(wrapped)
	}
	p.out <- ev
}

// shutdown implements spec §5's cancellation contract: flush pending
// Removes, apply and emit them, then let run's defer close the stream.
func (p *pipeline) shutdown() {
	p.logger.Info("pipeline shutting down")
	p.emitAll(p.corr.Stop())
	close(p.handle.done)
}

func rawEventID(raw events.RawEvent) string {
	return newEventIDForRaw(raw)
}
