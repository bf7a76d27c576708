package schedule

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/store"
)

// Updater refreshes a single item. Implemented by Orchestrator.
type Updater interface {
	UpdateItem(ctx context.Context, item model.TrackedItem) error
}

// EngineConfig tunes a refresh cycle.
type EngineConfig struct {
	BatchSize     int           // items per cycle; <=0 means all
	MaxConcurrent int           // parallel item updates, default 3
	Deadline      time.Duration // soft cycle budget; 0 means none
	ItemTimeout   time.Duration // per-item budget, default 2m

	// ItemDelayMin/Max is the randomized pause before each item update,
	// so a cycle does not hit hosts in a detectable burst.
	ItemDelayMin time.Duration
	ItemDelayMax time.Duration
}

// Engine runs refresh cycles: plan a batch from one snapshot, update items
// concurrently, isolate per-item failures, and summarize.
type Engine struct {
	store   store.Store
	scorer  *Scorer
	updater Updater
	cfg     EngineConfig

	sleep func(ctx context.Context, d time.Duration)
}

// NewEngine builds a cycle engine.
func NewEngine(st store.Store, scorer *Scorer, updater Updater, cfg EngineConfig) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 2 * time.Minute
	}
	return &Engine{
		store:   st,
		scorer:  scorer,
		updater: updater,
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

// RunCycle executes one refresh cycle. The deadline gates starting new
// items; in-flight updates run to completion under their own timeout. The
// summary counts only items actually attempted.
func (e *Engine) RunCycle(ctx context.Context) (model.CycleSummary, error) {
	log := zap.L().With(zap.String("component", "schedule.engine"))
	start := time.Now()

	items, err := e.store.ListItems(ctx)
	if err != nil {
		return model.CycleSummary{}, err
	}
	if len(items) == 0 {
		log.Info("no items tracked, cycle is a no-op")
		return model.CycleSummary{}, nil
	}

	planned := Plan(ctx, e.scorer, items, e.cfg.BatchSize)
	log.Info("cycle planned",
		zap.Int("tracked", len(items)),
		zap.Int("planned", len(planned)))

	var cutoff time.Time
	if e.cfg.Deadline > 0 {
		cutoff = start.Add(e.cfg.Deadline)
	}

	var attempted, succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for _, item := range planned {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if !cutoff.IsZero() && time.Now().After(cutoff) {
				return nil // budget spent, leave the rest for the next cycle
			}

			e.sleep(gctx, e.itemDelay())
			if gctx.Err() != nil {
				return gctx.Err()
			}

			attempted.Add(1)

			itemCtx, cancel := context.WithTimeout(gctx, e.cfg.ItemTimeout)
			err := e.updater.UpdateItem(itemCtx, item)
			cancel()

			if err != nil {
				failed.Add(1)
				log.Warn("item update failed",
					zap.String("item_id", item.ID),
					zap.String("locator", item.Locator),
					zap.Error(err))
				return nil // one item failing never aborts the cycle
			}
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return model.CycleSummary{}, err
	}

	summary := model.CycleSummary{
		Attempted:  int(attempted.Load()),
		Succeeded:  int(succeeded.Load()),
		Failed:     int(failed.Load()),
		DurationMs: time.Since(start).Milliseconds(),
	}
	log.Info("cycle complete",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", summary.DurationMs))
	return summary, nil
}

func (e *Engine) itemDelay() time.Duration {
	if e.cfg.ItemDelayMax <= 0 || e.cfg.ItemDelayMax < e.cfg.ItemDelayMin {
		return 0
	}
	span := e.cfg.ItemDelayMax - e.cfg.ItemDelayMin
	if span == 0 {
		return e.cfg.ItemDelayMin
	}
	return e.cfg.ItemDelayMin + time.Duration(rand.Int64N(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
