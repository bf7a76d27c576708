package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/alert"
	"github.com/pricepulse/pricewatch/internal/extract"
	"github.com/pricepulse/pricewatch/internal/fetch"
	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/normalize"
	"github.com/pricepulse/pricewatch/internal/resilience"
	"github.com/pricepulse/pricewatch/internal/store"
)

// Orchestrator runs the full refresh pipeline for one item: fetch with
// retries, resolve a consensus price, commit, then evaluate alerts.
type Orchestrator struct {
	store      store.Store
	controller *fetch.Controller
	evaluator  *alert.Evaluator

	persistRetry resilience.RetryConfig
}

// NewOrchestrator builds an orchestrator. A failed persistence write
// retries the whole pipeline from a fresh fetch, since the old document
// may already be stale.
func NewOrchestrator(st store.Store, controller *fetch.Controller, evaluator *alert.Evaluator) *Orchestrator {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.ShouldRetry = func(err error) bool {
		return resilience.KindOf(err) == resilience.FailPersistence
	}
	retry.OnRetry = resilience.RetryLogger("schedule.orchestrator", "update_item")

	return &Orchestrator{
		store:        st,
		controller:   controller,
		evaluator:    evaluator,
		persistRetry: retry,
	}
}

// UpdateItem refreshes one item. A nil consensus price is a terminal
// no-signal failure for this cycle: the stored price is left untouched and
// no observation is recorded, never a fabricated value.
func (o *Orchestrator) UpdateItem(ctx context.Context, item model.TrackedItem) error {
	return resilience.Do(ctx, o.persistRetry, func(ctx context.Context) error {
		return o.updateOnce(ctx, item)
	})
}

func (o *Orchestrator) updateOnce(ctx context.Context, item model.TrackedItem) error {
	log := zap.L().With(
		zap.String("item_id", item.ID),
		zap.String("locator", item.Locator),
	)

	loc := normalize.Locator{
		Canonical:  item.Locator,
		Platform:   item.Platform,
		ExternalID: item.ExternalID,
	}

	out, err := o.controller.Run(ctx, loc)
	if err != nil && len(out.Candidates) == 0 {
		return err
	}

	price := extract.ResolveConsensus(out.Candidates)
	if price == nil {
		return resilience.Failure(resilience.FailNoSignal, "no plausible price candidates", err)
	}

	observedAt := time.Now().UTC()
	if err := o.store.CommitRefresh(ctx, item.ID, *price, priceSource(out), observedAt); err != nil {
		return resilience.Failure(resilience.FailPersistence, "commit refresh", err)
	}

	log.Info("price refreshed",
		zap.Float64("price", *price),
		zap.Int("candidates", len(out.Candidates)),
		zap.String("outcome", string(out.Kind)))

	// alerts fire only on an actual drop below the previously known price
	if item.CurrentPrice != nil && *price < *item.CurrentPrice {
		triggered, evalErr := o.evaluator.Evaluate(ctx, item, *price)
		if evalErr != nil {
			// the refresh already committed; alert evaluation failing must
			// not fail the item update
			log.Warn("alert evaluation failed", zap.Error(evalErr))
		} else if triggered > 0 {
			log.Info("alerts triggered", zap.Int("count", triggered))
		}
	}
	return nil
}

func priceSource(out model.ExtractionOutcome) model.FieldSource {
	if out.Record != nil {
		if src, ok := out.Record.FieldSources["price"]; ok {
			return src
		}
	}
	if len(out.Candidates) > 0 {
		return out.Candidates[0].Source
	}
	return model.SourceFreeText
}
