package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricewatch/internal/extract"
	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/normalize"
	"github.com/pricepulse/pricewatch/internal/resilience"
)

// scriptedFetcher replays a fixed sequence of results and records the
// identity used on each attempt.
type scriptedFetcher struct {
	results []Result
	calls   int
	agents  []string
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ string, id Identity) Result {
	f.agents = append(f.agents, id.UserAgent)
	if f.calls >= len(f.results) {
		return Result{Status: StatusNetworkError, Err: errors.New("script exhausted")}
	}
	r := f.results[f.calls]
	f.calls++
	return r
}

func okResult(t *testing.T, html string) Result {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return Result{Status: StatusOK, Doc: doc}
}

func newTestController(f Fetcher, maxAttempts int) *Controller {
	c := NewController(f,
		extract.NewAggregator(extract.DefaultExtractors(nil)...),
		NewIdentityPool("ua-1", "ua-2", "ua-3"),
		ControllerConfig{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond})
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c
}

func testLocator() normalize.Locator {
	return normalize.Locator{Canonical: "https://shop.example.com/p/1", Platform: "generic"}
}

const completePage = `<html><head><title>x</title></head><body>
<h1 id="productTitle">Acme Widget</h1>
<span id="priceblock_ourprice">₹1,299</span>
</body></html>`

func TestControllerSuccessFirstAttempt(t *testing.T) {
	f := &scriptedFetcher{results: []Result{okResult(t, completePage)}}

	out, err := newTestController(f, 5).Run(context.Background(), testLocator())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeComplete, out.Kind)
	assert.Equal(t, "Acme Widget", out.Record.Name)
	assert.Equal(t, 1299.0, *out.Record.Price)
	assert.Equal(t, 1, f.calls, "should stop after the first complete attempt")
}

func TestControllerRotatesIdentityAcrossAttempts(t *testing.T) {
	f := &scriptedFetcher{results: []Result{
		{Status: StatusBlocked, BlockType: BlockCaptcha},
		{Status: StatusNetworkError, Err: errors.New("timeout")},
		okResult(t, completePage),
	}}

	out, err := newTestController(f, 5).Run(context.Background(), testLocator())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeComplete, out.Kind)
	assert.Equal(t, []string{"ua-1", "ua-2", "ua-3"}, f.agents)
}

func TestControllerAllBlockedTerminal(t *testing.T) {
	f := &scriptedFetcher{results: []Result{
		{Status: StatusBlocked, BlockType: BlockCaptcha},
		{Status: StatusBlocked, BlockType: BlockCloudflare},
		{Status: StatusBlocked, BlockType: BlockCaptcha},
	}}

	out, err := newTestController(f, 3).Run(context.Background(), testLocator())
	require.Error(t, err)

	assert.Equal(t, resilience.FailBlocked, resilience.KindOf(err))
	assert.Equal(t, model.OutcomeNoSignal, out.Kind)
	assert.Equal(t, 3, f.calls)
}

func TestControllerMergesAcrossAttempts(t *testing.T) {
	// first attempt: price but no name; second: name but no price
	priceOnly := `<html><head></head><body><span id="priceblock_ourprice">₹999</span></body></html>`
	nameOnly := `<html><head><title>Widget Listing Page</title></head><body><h1 id="productTitle">Acme Widget</h1></body></html>`

	f := &scriptedFetcher{results: []Result{okResult(t, priceOnly), okResult(t, nameOnly)}}

	out, err := newTestController(f, 5).Run(context.Background(), testLocator())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeComplete, out.Kind)
	assert.Equal(t, "Acme Widget", out.Record.Name)
	assert.Equal(t, 999.0, *out.Record.Price)
	assert.Equal(t, 2, f.calls)
}

func TestControllerAccumulatesCandidates(t *testing.T) {
	pageA := `<html><head></head><body><span id="priceblock_ourprice">₹999</span></body></html>`
	pageB := `<html><head></head><body>
<h1 id="productTitle">Acme Widget</h1>
<span id="priceblock_ourprice">₹1,050</span>
</body></html>`

	f := &scriptedFetcher{results: []Result{okResult(t, pageA), okResult(t, pageB)}}

	c := NewController(f,
		extract.NewAggregator(extract.Elements{}),
		NewIdentityPool("ua-1"),
		ControllerConfig{MaxAttempts: 5, BaseDelay: time.Millisecond})
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	out, err := c.Run(context.Background(), testLocator())
	require.NoError(t, err)

	require.Len(t, out.Candidates, 2)
	assert.Equal(t, 999.0, out.Candidates[0].Price)
	assert.Equal(t, 1050.0, out.Candidates[1].Price)
	// merged price keeps the first reading; consensus sees both
	assert.Equal(t, 999.0, *out.Record.Price)
}

func TestControllerPriceWithoutNameStillReturned(t *testing.T) {
	priceOnly := `<html><head></head><body><span id="priceblock_ourprice">₹999</span></body></html>`
	f := &scriptedFetcher{results: []Result{
		okResult(t, priceOnly), okResult(t, priceOnly), okResult(t, priceOnly),
	}}

	out, err := newTestController(f, 3).Run(context.Background(), testLocator())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomePartial, out.Kind)
	assert.Contains(t, out.Reasons, "name_missing")
	assert.NotEmpty(t, out.Candidates)
}

func TestControllerContextCancelStops(t *testing.T) {
	f := &scriptedFetcher{results: []Result{
		{Status: StatusNetworkError, Err: errors.New("timeout")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestController(f, 5)
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Run(ctx, testLocator())
	assert.Error(t, err)
	assert.LessOrEqual(t, f.calls, 1)
}

func TestAttemptDelayGrowsLinearly(t *testing.T) {
	c := NewController(nil, nil, NewIdentityPool(), ControllerConfig{
		BaseDelay:      time.Second,
		JitterFraction: 0.0001,
	})

	assert.Equal(t, time.Duration(0), c.attemptDelay(1))
	d2 := c.attemptDelay(2)
	d4 := c.attemptDelay(4)
	assert.InDelta(t, float64(time.Second), float64(d2), float64(time.Second)*0.01)
	assert.InDelta(t, float64(3*time.Second), float64(d4), float64(time.Second)*0.01)
}
