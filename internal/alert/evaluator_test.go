package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/store"
)

type fakeNotifier struct {
	fail   bool
	sent   []string
	health Health
}

func (f *fakeNotifier) Send(_ context.Context, a model.Alert, _ model.TrackedItem, _ float64) error {
	if f.fail {
		return eris.New("delivery refused")
	}
	f.sent = append(f.sent, a.ID)
	return nil
}

func (f *fakeNotifier) Health() Health { return f.health }

func newAlertStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedItemWithAlert(t *testing.T, s store.Store, target float64) (model.TrackedItem, model.Alert) {
	t.Helper()
	ctx := context.Background()

	item := model.TrackedItem{
		Locator:  "https://shop.example.com/p/1",
		Platform: "generic",
		Name:     "Acme Widget",
		Currency: "INR",
	}
	require.NoError(t, s.CreateItem(ctx, &item))

	a := model.Alert{ItemID: item.ID, NotifyTarget: "buyer@example.com", TargetPrice: target}
	require.NoError(t, s.CreateAlert(ctx, &a))
	return item, a
}

func TestEvaluateTriggersOnSatisfiedTarget(t *testing.T) {
	s := newAlertStore(t)
	item, a := seedItemWithAlert(t, s, 950)
	notifier := &fakeNotifier{}

	n, err := NewEvaluator(s, notifier).Evaluate(context.Background(), item, 900)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{a.ID}, notifier.sent)

	alerts, err := s.ListAlerts(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Triggered)
	require.NotNil(t, alerts[0].TriggeredPrice)
	assert.Equal(t, 900.0, *alerts[0].TriggeredPrice)
}

func TestEvaluateSkipsUnsatisfiedTarget(t *testing.T) {
	s := newAlertStore(t)
	item, _ := seedItemWithAlert(t, s, 800)
	notifier := &fakeNotifier{}

	n, err := NewEvaluator(s, notifier).Evaluate(context.Background(), item, 900)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, notifier.sent)
}

func TestEvaluateFailedDeliveryLeavesAlertArmed(t *testing.T) {
	s := newAlertStore(t)
	item, _ := seedItemWithAlert(t, s, 950)
	notifier := &fakeNotifier{fail: true}

	n, err := NewEvaluator(s, notifier).Evaluate(context.Background(), item, 900)
	require.NoError(t, err)
	assert.Zero(t, n)

	alerts, err := s.ListAlerts(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Triggered, "alert must stay armed after a failed delivery")
}

func TestEvaluateTriggersOnlyOnce(t *testing.T) {
	s := newAlertStore(t)
	item, _ := seedItemWithAlert(t, s, 950)
	notifier := &fakeNotifier{}
	ev := NewEvaluator(s, notifier)

	n, err := ev.Evaluate(context.Background(), item, 900)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a later, even lower price must not re-fire the triggered alert
	n, err = ev.Evaluate(context.Background(), item, 850)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, notifier.sent, 1)
}

func TestWebhookNotifierSend(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.Send(context.Background(),
		model.Alert{ID: "a1", TargetPrice: 950, NotifyTarget: "buyer@example.com"},
		model.TrackedItem{ID: "i1", Name: "Acme Widget", Currency: "INR"},
		899)
	require.NoError(t, err)
	assert.Contains(t, string(gotBody), `"event":"price_drop"`)
	assert.Contains(t, string(gotBody), `"price":899`)

	h := n.Health()
	assert.True(t, h.Verified)
	assert.False(t, h.CheckedAt.IsZero())
}

func TestWebhookNotifierRecordsFailedHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.Send(context.Background(), model.Alert{}, model.TrackedItem{}, 100)
	require.Error(t, err)

	h := n.Health()
	assert.False(t, h.Verified)
	assert.NotEmpty(t, h.LastError)
}
