package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricewatch/internal/alert"
	"github.com/pricepulse/pricewatch/internal/extract"
	"github.com/pricepulse/pricewatch/internal/fetch"
	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/resilience"
	"github.com/pricepulse/pricewatch/internal/store"
)

// pageFetcher always serves the same document.
type pageFetcher struct {
	html  string
	calls int
}

func (f *pageFetcher) Fetch(context.Context, string, fetch.Identity) fetch.Result {
	f.calls++
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return fetch.Result{Status: fetch.StatusNetworkError, Err: err}
	}
	return fetch.Result{Status: fetch.StatusOK, Doc: doc}
}

type countingNotifier struct {
	sent int
}

func (n *countingNotifier) Send(context.Context, model.Alert, model.TrackedItem, float64) error {
	n.sent++
	return nil
}

func (n *countingNotifier) Health() alert.Health {
	return alert.Health{Verified: true, CheckedAt: time.Now()}
}

func newOrchestrator(s store.Store, f fetch.Fetcher, notifier alert.Notifier) *Orchestrator {
	controller := fetch.NewController(f,
		extract.NewAggregator(extract.DefaultExtractors(nil)...),
		fetch.NewIdentityPool("test-ua"),
		fetch.ControllerConfig{MaxAttempts: 1, BaseDelay: time.Millisecond})
	return NewOrchestrator(s, controller, alert.NewEvaluator(s, notifier))
}

func pageWithPrice(price string) string {
	return `<html><head><title>x</title></head><body>
<h1 id="productTitle">Acme Widget</h1>
<span id="priceblock_ourprice">₹` + price + `</span>
</body></html>`
}

func TestUpdateItemCommitsAndTriggersAlertOnDrop(t *testing.T) {
	s := newScheduleStore(t)
	ctx := context.Background()

	item := trackItem(t, s, "https://shop.example.com/p/drop")
	require.NoError(t, s.CommitRefresh(ctx, item.ID, 1000, model.SourceElements, time.Now().Add(-time.Hour)))
	a := model.Alert{ItemID: item.ID, NotifyTarget: "buyer@example.com", TargetPrice: 950}
	require.NoError(t, s.CreateAlert(ctx, &a))

	// reload so the orchestrator sees current_price = 1000
	current, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)

	notifier := &countingNotifier{}
	orch := newOrchestrator(s, &pageFetcher{html: pageWithPrice("900")}, notifier)

	require.NoError(t, orch.UpdateItem(ctx, *current))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 900.0, *got.CurrentPrice)

	obs, err := s.ListObservations(ctx, item.ID, 10)
	require.NoError(t, err)
	assert.Len(t, obs, 2)

	assert.Equal(t, 1, notifier.sent)
	alerts, err := s.ListAlerts(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, alerts[0].Triggered)

	// same price again: no drop, no second notification
	refreshed, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NoError(t, orch.UpdateItem(ctx, *refreshed))
	assert.Equal(t, 1, notifier.sent)
}

func TestUpdateItemNoAlertOnPriceRise(t *testing.T) {
	s := newScheduleStore(t)
	ctx := context.Background()

	item := trackItem(t, s, "https://shop.example.com/p/rise")
	require.NoError(t, s.CommitRefresh(ctx, item.ID, 1000, model.SourceElements, time.Now().Add(-time.Hour)))
	require.NoError(t, s.CreateAlert(ctx, &model.Alert{ItemID: item.ID, NotifyTarget: "b@example.com", TargetPrice: 1100}))

	current, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)

	notifier := &countingNotifier{}
	orch := newOrchestrator(s, &pageFetcher{html: pageWithPrice("1,050")}, notifier)
	require.NoError(t, orch.UpdateItem(ctx, *current))

	// price went up: even a satisfied target must not fire
	assert.Zero(t, notifier.sent)
}

func TestUpdateItemNoSignalLeavesStateUntouched(t *testing.T) {
	s := newScheduleStore(t)
	ctx := context.Background()

	item := trackItem(t, s, "https://shop.example.com/p/empty")
	require.NoError(t, s.CommitRefresh(ctx, item.ID, 1000, model.SourceElements, time.Now().Add(-time.Hour)))

	current, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)

	notifier := &countingNotifier{}
	orch := newOrchestrator(s, &pageFetcher{html: `<html><body><div>gone</div></body></html>`}, notifier)

	err = orch.UpdateItem(ctx, *current)
	require.Error(t, err)
	assert.Equal(t, resilience.FailNoSignal, resilience.KindOf(err))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 1000.0, *got.CurrentPrice, "stored price must never be overwritten by a failed refresh")

	obs, err := s.ListObservations(ctx, item.ID, 10)
	require.NoError(t, err)
	assert.Len(t, obs, 1, "no observation may be recorded without a plausible price")
}

func TestUpdateItemFirstRefreshHasNoDropBaseline(t *testing.T) {
	s := newScheduleStore(t)
	ctx := context.Background()

	item := trackItem(t, s, "https://shop.example.com/p/first")
	require.NoError(t, s.CreateAlert(ctx, &model.Alert{ItemID: item.ID, NotifyTarget: "b@example.com", TargetPrice: 5000}))

	notifier := &countingNotifier{}
	orch := newOrchestrator(s, &pageFetcher{html: pageWithPrice("900")}, notifier)
	require.NoError(t, orch.UpdateItem(ctx, item))

	// no prior price means no drop comparison, so no alert fires yet
	assert.Zero(t, notifier.sent)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 900.0, *got.CurrentPrice)
}
