package engine

import (
	"context"
	"sync"
	"time"

	"github.com/0xmhha/pathwatch/pkg/movedetect"
	"github.com/0xmhha/pathwatch/pkg/source"
	"github.com/0xmhha/pathwatch/pkg/store"
	"github.com/0xmhha/pathwatch/pkg/werr"
)

// handle is the WatcherHandle implementation returned by Start.
type handle struct {
	st     *store.Store
	watch  store.WatchID
	src    source.Adapter
	corr   *movedetect.Correlator
	cancel context.CancelFunc
	done   chan struct{} // closed by pipeline.run once the drain completes
	bgDone chan struct{} // closed by runBackgroundJobs on exit

	mu        sync.Mutex
	stopped   bool
	lastErr   error
	lastErrAt time.Time
}

// recordError records the most recent background error surfaced by the
// source adapter or synchroniser, for Stats to report.
func (h *handle) recordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
	h.lastErrAt = time.Now()
}

// Stop implements WatcherHandle.Stop, per spec §5's cancellation contract:
// cancel, wait for the pipeline to flush and the background jobs to exit,
// then release the source adapter and the store. Idempotent.
func (h *handle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	h.cancel()
	<-h.done
	if h.bgDone != nil {
		<-h.bgDone
	}

	var stopErr error
	if err := h.src.Close(); err != nil {
		h.recordError(werr.Wrap(werr.Filesystem, err))
		stopErr = err
	}
	if err := h.st.Close(); err != nil {
		h.recordError(werr.Wrap(werr.Store, err))
		stopErr = err
	}
	return stopErr
}

// Stats implements WatcherHandle.Stats.
func (h *handle) Stats() (HandleStats, error) {
	wm, err := h.st.GetWatch(h.watch)
	if err != nil {
		return HandleStats{}, werr.Wrap(werr.Store, err)
	}
	global, err := h.st.GlobalStats()
	if err != nil {
		return HandleStats{}, werr.Wrap(werr.Store, err)
	}

	h.mu.Lock()
	lastErr, lastErrAt := h.lastErr, h.lastErrAt
	h.mu.Unlock()

	return HandleStats{
		Watch:       wm,
		Global:      global,
		MoveDetect:  h.corr.Stats(),
		LastError:   lastErr,
		LastErrorAt: lastErrAt,
	}, nil
}
