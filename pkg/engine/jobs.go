package engine

import (
	"context"
	"sync"
	"time"

	"github.com/0xmhha/pathwatch/pkg/config"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/store"
	"github.com/0xmhha/pathwatch/pkg/werr"
)

// runBackgroundJobs schedules the retention sweep, overlap optimisation,
// and stats repair jobs named in spec §4.5-4.6, each on its own ticker.
// An interval of zero disables that job entirely. Every job is
// shutdown-aware: it exits at its next tick or immediately on ctx.Done,
// per spec §5's "background jobs exit at their next yield". done, if
// non-nil, is closed once every scheduled job has exited, giving
// WatcherHandle.Stop something to wait on.
func runBackgroundJobs(ctx context.Context, st *store.Store, cfg config.StoreConfig, log logger.Logger, done chan struct{}) {
	if done != nil {
		defer close(done)
	}

	var wg sync.WaitGroup
	schedule := func(interval time.Duration, name string, job func()) {
		if interval <= 0 {
			log.Debug("background job disabled", "job", name)
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					job()
				}
			}
		}()
	}

	schedule(cfg.RetentionSweepInterval, "retention_sweep", func() {
		if cfg.Retention <= 0 {
			return
		}
		deleted, err := st.RetentionSweep(time.Now().Add(-cfg.Retention))
		if err != nil {
			log.Fail("retention sweep failed", werr.Wrap(werr.Store, err))
			return
		}
		if deleted > 0 {
			log.Info("retention sweep completed", "deleted", deleted)
		}
	})

	schedule(cfg.OverlapOptimisationInterval, "overlap_optimisation", func() {
		overlaps, err := st.OptimizeOverlaps()
		if err != nil {
			log.Fail("overlap optimisation failed", werr.Wrap(werr.Store, err))
			return
		}
		log.Debug("overlap optimisation completed", "overlaps", len(overlaps))
	})

	schedule(cfg.StatsRepairInterval, "stats_repair", func() {
		report, err := st.RepairStatsCounters()
		if err != nil {
			log.Fail("stats repair failed", werr.Wrap(werr.Store, err))
			return
		}
		log.Debug("stats repair completed", "watches_repaired", report.WatchesRepaired)
	})

	wg.Wait()
}
