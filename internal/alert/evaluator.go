package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/store"
)

// Evaluator fires alerts whose targets a new price satisfies. Each alert is
// notified first and only flipped to triggered after delivery succeeds, so
// a failed notification leaves the alert armed for the next refresh.
type Evaluator struct {
	store    store.Store
	notifier Notifier
}

// NewEvaluator builds an evaluator.
func NewEvaluator(st store.Store, notifier Notifier) *Evaluator {
	return &Evaluator{store: st, notifier: notifier}
}

// Evaluate processes every armed alert the new price satisfies and returns
// how many were triggered. Delivery failures are logged, never escalated:
// the price refresh that produced this evaluation has already committed.
func (e *Evaluator) Evaluate(ctx context.Context, item model.TrackedItem, price float64) (int, error) {
	alerts, err := e.store.UntriggeredAlerts(ctx, item.ID, price)
	if err != nil {
		return 0, err
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	triggered := 0
	for _, a := range alerts {
		if err := e.notifier.Send(ctx, a, item, price); err != nil {
			zap.L().Warn("alert notification failed, alert stays armed",
				zap.String("alert_id", a.ID),
				zap.String("item_id", item.ID),
				zap.Float64("price", price),
				zap.Error(err))
			continue
		}

		if err := e.store.MarkAlertTriggered(ctx, a.ID, price, time.Now().UTC()); err != nil {
			// another worker triggered it between the query and the flip;
			// the duplicate notification already went out, log and move on
			zap.L().Warn("alert already triggered",
				zap.String("alert_id", a.ID),
				zap.Error(err))
			continue
		}

		zap.L().Info("alert triggered",
			zap.String("alert_id", a.ID),
			zap.String("item_id", item.ID),
			zap.String("item_name", item.Name),
			zap.Float64("target_price", a.TargetPrice),
			zap.Float64("price", price))
		triggered++
	}
	return triggered, nil
}
