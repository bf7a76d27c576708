package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricewatch/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedItem(t *testing.T, s *SQLiteStore) *model.TrackedItem {
	t.Helper()
	item := &model.TrackedItem{
		Locator:    "https://www.amazon.in/dp/B0ABCDEFGH",
		Platform:   "amazon",
		ExternalID: "B0ABCDEFGH",
		Name:       "Acme Widget Pro",
		Currency:   "INR",
	}
	require.NoError(t, s.CreateItem(context.Background(), item))
	return item
}

func TestSQLiteItemLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	item := seedItem(t, s)
	require.NotEmpty(t, item.ID)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Locator, got.Locator)
	assert.Nil(t, got.CurrentPrice)
	assert.Nil(t, got.UpdatedAt)

	byLoc, err := s.GetItemByLocator(ctx, item.Locator)
	require.NoError(t, err)
	assert.Equal(t, item.ID, byLoc.ID)

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, s.DeleteItem(ctx, item.ID))
	_, err = s.GetItem(ctx, item.ID)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteDuplicateLocator(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	seedItem(t, s)
	err := s.CreateItem(ctx, &model.TrackedItem{
		Locator:  "https://www.amazon.in/dp/B0ABCDEFGH",
		Platform: "amazon",
		Name:     "Same Widget Again",
	})
	assert.True(t, eris.Is(err, ErrDuplicateLocator))
}

func TestSQLiteCommitRefresh(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	item := seedItem(t, s)

	observedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.CommitRefresh(ctx, item.ID, 1299, model.SourceStructuredData, observedAt))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 1299.0, *got.CurrentPrice)
	require.NotNil(t, got.UpdatedAt)

	obs, err := s.ListObservations(ctx, item.ID, 10)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 1299.0, obs[0].Price)
	assert.Equal(t, string(model.SourceStructuredData), obs[0].Source)
}

func TestSQLiteCommitRefreshUnknownItemWritesNothing(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	item := seedItem(t, s)

	err := s.CommitRefresh(ctx, "no-such-item", 999, model.SourceElements, time.Now())
	require.Error(t, err)

	// the observation insert must have rolled back with the item update
	obs, err := s.ListObservations(ctx, "no-such-item", 10)
	require.NoError(t, err)
	assert.Empty(t, obs)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentPrice)
}

func TestSQLiteRecentObservations(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	item := seedItem(t, s)

	now := time.Now().UTC()
	for i, offset := range []time.Duration{-72 * time.Hour, -24 * time.Hour, -1 * time.Hour} {
		require.NoError(t, s.CommitRefresh(ctx, item.ID, 1000+float64(i), model.SourceElements, now.Add(offset)))
	}

	recent, err := s.RecentObservations(ctx, item.ID, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// oldest first
	assert.Equal(t, 1001.0, recent[0].Price)
	assert.Equal(t, 1002.0, recent[1].Price)
}

func TestSQLiteDeleteItemCascades(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	item := seedItem(t, s)

	require.NoError(t, s.CommitRefresh(ctx, item.ID, 1000, model.SourceElements, time.Now()))
	require.NoError(t, s.CreateAlert(ctx, &model.Alert{ItemID: item.ID, NotifyTarget: "a@example.com", TargetPrice: 900}))

	require.NoError(t, s.DeleteItem(ctx, item.ID))

	obs, err := s.ListObservations(ctx, item.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, obs)

	alerts, err := s.ListAlerts(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestSQLiteUntriggeredAlerts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	item := seedItem(t, s)

	satisfied := &model.Alert{ItemID: item.ID, NotifyTarget: "a@example.com", TargetPrice: 950}
	tooLow := &model.Alert{ItemID: item.ID, NotifyTarget: "b@example.com", TargetPrice: 800}
	require.NoError(t, s.CreateAlert(ctx, satisfied))
	require.NoError(t, s.CreateAlert(ctx, tooLow))

	got, err := s.UntriggeredAlerts(ctx, item.ID, 900)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, satisfied.ID, got[0].ID)

	n, err := s.CountActiveAlerts(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteMarkAlertTriggeredOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	item := seedItem(t, s)

	alert := &model.Alert{ItemID: item.ID, NotifyTarget: "a@example.com", TargetPrice: 950}
	require.NoError(t, s.CreateAlert(ctx, alert))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.MarkAlertTriggered(ctx, alert.ID, 899, now))

	// second flip must fail: triggered is monotonic
	err := s.MarkAlertTriggered(ctx, alert.ID, 850, now)
	assert.True(t, eris.Is(err, ErrNotFound))

	alerts, err := s.ListAlerts(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Triggered)
	require.NotNil(t, alerts[0].TriggeredPrice)
	assert.Equal(t, 899.0, *alerts[0].TriggeredPrice)

	n, err := s.CountActiveAlerts(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
