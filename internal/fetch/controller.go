package fetch

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/extract"
	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/normalize"
	"github.com/pricepulse/pricewatch/internal/resilience"
)

// Controller drives fetch attempts for one item: progressive delay before
// every attempt, a fresh identity per attempt, and extraction after each
// successful fetch. Partial records are merged across attempts
// first-writer-wins and all price candidates are kept, so two half-useful
// attempts can add up to a complete record.
type Controller struct {
	fetcher    Fetcher
	aggregator *extract.Aggregator
	identities *IdentityPool

	maxAttempts int
	baseDelay   time.Duration
	jitterFrac  float64

	sleep func(ctx context.Context, d time.Duration) error
}

// ControllerConfig tunes the retry controller.
type ControllerConfig struct {
	MaxAttempts    int           // default 5
	BaseDelay      time.Duration // default 2s; attempt n waits n*BaseDelay
	JitterFraction float64       // default 0.3
}

// NewController builds a retry controller.
func NewController(fetcher Fetcher, aggregator *extract.Aggregator, identities *IdentityPool, cfg ControllerConfig) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = 0.3
	}
	return &Controller{
		fetcher:     fetcher,
		aggregator:  aggregator,
		identities:  identities,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		jitterFrac:  cfg.JitterFraction,
		sleep:       sleepCtx,
	}
}

// Run fetches and extracts until the merged record has a name or attempts
// are exhausted. The returned outcome always carries every price candidate
// gathered along the way, even when err is non-nil: a terminal block after
// a half-successful attempt must not discard its readings.
func (c *Controller) Run(ctx context.Context, loc normalize.Locator) (model.ExtractionOutcome, error) {
	merged := model.Record{FieldSources: make(map[string]model.FieldSource)}
	var candidates []model.PriceCandidate
	var lastFailure *resilience.RefreshError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.sleep(ctx, c.attemptDelay(attempt)); err != nil {
			return outcomeOf(merged, candidates), lastErrOr(lastFailure, err)
		}

		id := c.identities.Next()
		result := c.fetcher.Fetch(ctx, loc.Canonical, id)

		switch result.Status {
		case StatusBlocked:
			lastFailure = resilience.Failure(resilience.FailBlocked, string(result.BlockType), result.Err)
			zap.L().Warn("fetch blocked",
				zap.String("locator", loc.Canonical),
				zap.Int("attempt", attempt),
				zap.String("block_type", string(result.BlockType)))
			continue
		case StatusNetworkError:
			lastFailure = resilience.Failure(resilience.FailNetwork, "fetch attempt failed", result.Err)
			zap.L().Warn("fetch failed",
				zap.String("locator", loc.Canonical),
				zap.Int("attempt", attempt),
				zap.Error(result.Err))
			continue
		}

		out := c.aggregator.Run(ctx, extract.Input{Doc: result.Doc, Locator: loc})
		candidates = append(candidates, out.Candidates...)

		if out.Record != nil {
			mergeRecords(&merged, out.Record)
		}

		// a name means the page was the right one; remaining gaps will not
		// be filled by refetching the same document
		if merged.Name != "" {
			return outcomeOf(merged, candidates), nil
		}

		lastFailure = resilience.Failure(resilience.FailNoSignal, "no usable fields extracted", nil)
		zap.L().Debug("extraction found no signal",
			zap.String("locator", loc.Canonical),
			zap.Int("attempt", attempt))
	}

	if len(candidates) > 0 {
		// price readings without a name still feed consensus
		return outcomeOf(merged, candidates), nil
	}
	if lastFailure == nil {
		lastFailure = resilience.Failure(resilience.FailNoSignal, "no attempts executed", nil)
	}
	return outcomeOf(merged, candidates), lastFailure
}

// attemptDelay grows linearly with the attempt number so pressure on a
// struggling host eases off, with jitter to avoid a detectable cadence.
func (c *Controller) attemptDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	base := float64(c.baseDelay) * float64(attempt-1)
	jitter := (rand.Float64()*2 - 1) * base * c.jitterFrac
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func mergeRecords(dst *model.Record, src *model.Record) {
	mergeStr := func(d *string, s string, field string) {
		if *d == "" && s != "" {
			*d = s
			if fs, ok := src.FieldSources[field]; ok {
				dst.FieldSources[field] = fs
			}
		}
	}
	mergeStr(&dst.Name, src.Name, "name")
	mergeStr(&dst.Currency, src.Currency, "currency")
	mergeStr(&dst.ImageURL, src.ImageURL, "image_url")
	mergeStr(&dst.Brand, src.Brand, "brand")
	mergeStr(&dst.Availability, src.Availability, "availability")
	if dst.Price == nil && src.Price != nil {
		dst.Price = src.Price
		if fs, ok := src.FieldSources["price"]; ok {
			dst.FieldSources["price"] = fs
		}
	}
	if dst.Method == "" {
		dst.Method = src.Method
	}
}

func outcomeOf(merged model.Record, candidates []model.PriceCandidate) model.ExtractionOutcome {
	switch {
	case merged.Name != "" && merged.Price != nil:
		return model.ExtractionOutcome{Kind: model.OutcomeComplete, Record: &merged, Candidates: candidates}
	case merged.Name != "":
		return model.ExtractionOutcome{
			Kind:       model.OutcomePartial,
			Record:     &merged,
			Candidates: candidates,
			Reasons:    []string{"price_missing"},
		}
	case len(candidates) > 0:
		return model.ExtractionOutcome{
			Kind:       model.OutcomePartial,
			Record:     &merged,
			Candidates: candidates,
			Reasons:    []string{"name_missing"},
		}
	default:
		return model.ExtractionOutcome{Kind: model.OutcomeNoSignal, Reasons: []string{"no_fields_extracted"}}
	}
}

func lastErrOr(failure *resilience.RefreshError, fallback error) error {
	if failure != nil {
		return failure
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
