package tierstore

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/tierstore/model"
)

// EvictionDriver supplies batches of candidate keys for hot-to-cold
// migration. Which keys to evict, and on what schedule, is external
// policy; the store only performs the migration.
type EvictionDriver interface {
	// Candidates returns up to max keys that should be migrated to the
	// cold tier. Returning an empty slice skips the pass.
	Candidates(max int) []model.Key
}

// EvictionRunnerOptions configure the background eviction loop.
type EvictionRunnerOptions struct {
	// Interval between eviction passes.
	Interval time.Duration

	// BatchSize is the maximum number of candidates per pass.
	BatchSize int
}

// EvictionRunner periodically pulls candidates from a driver and migrates
// them with EvictWithDelayedDestroy. Passes are paced against the store's
// eviction IO budget: each pass first waits out the bytes moved by the
// previous one.
type EvictionRunner struct {
	store    *Store
	driver   EvictionDriver
	interval time.Duration
	batch    int

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEvictionRunner creates a runner; Start launches it.
func NewEvictionRunner(store *Store, driver EvictionDriver, optFns ...func(o *EvictionRunnerOptions)) *EvictionRunner {
	opts := EvictionRunnerOptions{
		Interval:  time.Second,
		BatchSize: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &EvictionRunner{
		store:    store,
		driver:   driver,
		interval: opts.Interval,
		batch:    opts.BatchSize,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop.
func (r *EvictionRunner) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop terminates the loop and waits for the in-flight pass to finish.
// It is idempotent.
func (r *EvictionRunner) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *EvictionRunner) loop() {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-r.stopCh
		cancel()
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Bytes moved by the previous pass; paid against the IO budget
	// before the next pass starts, so pacing never blocks while the
	// tiers' locks are held.
	var pending int64

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
		}

		if pending > 0 {
			if err := r.store.rc.AcquireIO(ctx, int(pending)); err != nil {
				return
			}
			pending = 0
		}

		keys := r.driver.Candidates(r.batch)
		if len(keys) == 0 {
			continue
		}

		_, bytes, err := r.store.evictDelayed(keys)
		if err != nil {
			r.store.logger.Error("eviction pass failed", "error", err)
			continue
		}
		pending = bytes
	}
}
