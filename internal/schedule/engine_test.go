package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricewatch/internal/model"
)

type recordingUpdater struct {
	mu      sync.Mutex
	updated []string
	failFor map[string]bool
	delay   time.Duration
}

func (u *recordingUpdater) UpdateItem(ctx context.Context, item model.TrackedItem) error {
	if u.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.delay):
		}
	}
	u.mu.Lock()
	u.updated = append(u.updated, item.ID)
	u.mu.Unlock()
	if u.failFor[item.ID] {
		return eris.New("update exploded")
	}
	return nil
}

func seedItems(t *testing.T, s interface {
	CreateItem(context.Context, *model.TrackedItem) error
}, n int) []model.TrackedItem {
	t.Helper()
	items := make([]model.TrackedItem, n)
	for i := range items {
		items[i] = model.TrackedItem{
			Locator:  "https://shop.example.com/e/" + string(rune('a'+i)),
			Platform: "generic",
			Name:     "Widget",
			Currency: "INR",
		}
		require.NoError(t, s.CreateItem(context.Background(), &items[i]))
	}
	return items
}

func TestRunCycleUpdatesEverythingWithinBound(t *testing.T) {
	s := newScheduleStore(t)
	seedItems(t, s, 4)
	updater := &recordingUpdater{}

	engine := NewEngine(s, NewScorer(s, ScorerConfig{}), updater, EngineConfig{MaxConcurrent: 2})
	summary, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Attempted)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Len(t, updater.updated, 4)
	assert.GreaterOrEqual(t, summary.DurationMs, int64(0))
}

func TestRunCycleBatchSizeLimitsWork(t *testing.T) {
	s := newScheduleStore(t)
	seedItems(t, s, 5)
	updater := &recordingUpdater{}

	engine := NewEngine(s, NewScorer(s, ScorerConfig{}), updater, EngineConfig{BatchSize: 2})
	summary, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Len(t, updater.updated, 2)
}

func TestRunCycleIsolatesItemFailures(t *testing.T) {
	s := newScheduleStore(t)
	items := seedItems(t, s, 3)
	updater := &recordingUpdater{failFor: map[string]bool{items[0].ID: true}}

	engine := NewEngine(s, NewScorer(s, ScorerConfig{}), updater, EngineConfig{})
	summary, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunCycleDeadlineGatesNewStarts(t *testing.T) {
	s := newScheduleStore(t)
	seedItems(t, s, 10)
	updater := &recordingUpdater{}

	// the cutoff is already in the past when workers check it
	engine := NewEngine(s, NewScorer(s, ScorerConfig{}), updater, EngineConfig{Deadline: time.Nanosecond})
	summary, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Attempted)
	assert.Empty(t, updater.updated)
}

func TestRunCycleDeadlineDoesNotCancelInFlight(t *testing.T) {
	s := newScheduleStore(t)
	seedItems(t, s, 6)
	updater := &recordingUpdater{delay: 40 * time.Millisecond}

	engine := NewEngine(s, NewScorer(s, ScorerConfig{}), updater, EngineConfig{
		MaxConcurrent: 1,
		Deadline:      60 * time.Millisecond,
	})
	summary, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	// at least one item started and finished; later items were gated
	assert.GreaterOrEqual(t, summary.Attempted, 1)
	assert.Less(t, summary.Attempted, 6)
	assert.Equal(t, summary.Attempted, summary.Succeeded)
}

func TestRunCycleEmptyStore(t *testing.T) {
	s := newScheduleStore(t)
	updater := &recordingUpdater{}

	engine := NewEngine(s, NewScorer(s, ScorerConfig{}), updater, EngineConfig{})
	summary, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted)
}
