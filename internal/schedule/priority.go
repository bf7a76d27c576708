// Package schedule decides which tracked items to refresh, in what order,
// and drives the refresh cycle.
package schedule

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/store"
)

// ScorerConfig tunes the priority components.
type ScorerConfig struct {
	// TargetInterval is the refresh cadence an item should roughly keep.
	TargetInterval time.Duration

	// Lookback bounds how far back volatility and alert context reach.
	Lookback time.Duration

	StalenessWeight   float64 // default 1.0
	NeverUpdatedScore float64 // staleness assigned to items never refreshed; default 10
	VolatilityScale   float64 // default 20
	VolatilityCap     float64 // default 5
	DefaultVolatility float64 // score when history is too thin; default 0.5
	AlertMultiplier   float64 // per armed alert; default 1.5
	AlertCountCap     int     // default 5
	RecentChangeBonus float64 // default 3
	RecentChangeSpan  time.Duration
	RecentChangePct   float64 // min relative spread to count as a change; default 0.05
}

// DefaultScorerConfig returns the standard scoring parameters.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		TargetInterval:    6 * time.Hour,
		Lookback:          14 * 24 * time.Hour,
		StalenessWeight:   1.0,
		NeverUpdatedScore: 10,
		VolatilityScale:   20,
		VolatilityCap:     5,
		DefaultVolatility: 0.5,
		AlertMultiplier:   1.5,
		AlertCountCap:     5,
		RecentChangeBonus: 3,
		RecentChangeSpan:  48 * time.Hour,
		RecentChangePct:   0.05,
	}
}

func (c ScorerConfig) withDefaults() ScorerConfig {
	d := DefaultScorerConfig()
	if c.TargetInterval <= 0 {
		c.TargetInterval = d.TargetInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.StalenessWeight <= 0 {
		c.StalenessWeight = d.StalenessWeight
	}
	if c.NeverUpdatedScore <= 0 {
		c.NeverUpdatedScore = d.NeverUpdatedScore
	}
	if c.VolatilityScale <= 0 {
		c.VolatilityScale = d.VolatilityScale
	}
	if c.VolatilityCap <= 0 {
		c.VolatilityCap = d.VolatilityCap
	}
	if c.DefaultVolatility <= 0 {
		c.DefaultVolatility = d.DefaultVolatility
	}
	if c.AlertMultiplier <= 0 {
		c.AlertMultiplier = d.AlertMultiplier
	}
	if c.AlertCountCap <= 0 {
		c.AlertCountCap = d.AlertCountCap
	}
	if c.RecentChangeBonus <= 0 {
		c.RecentChangeBonus = d.RecentChangeBonus
	}
	if c.RecentChangeSpan <= 0 {
		c.RecentChangeSpan = d.RecentChangeSpan
	}
	if c.RecentChangePct <= 0 {
		c.RecentChangePct = d.RecentChangePct
	}
	return c
}

// Scorer computes refresh priorities from stored history. Score components
// degrade independently: a failed history query falls back to a fixed
// default rather than sinking the whole item.
type Scorer struct {
	store store.Store
	cfg   ScorerConfig

	nowFunc func() time.Time
}

// NewScorer builds a scorer.
func NewScorer(st store.Store, cfg ScorerConfig) *Scorer {
	return &Scorer{store: st, cfg: cfg.withDefaults(), nowFunc: time.Now}
}

// Score computes the priority of one item.
func (s *Scorer) Score(ctx context.Context, item model.TrackedItem) model.PriorityScore {
	now := s.nowFunc().UTC()

	score := model.PriorityScore{ItemID: item.ID}
	score.Staleness = s.staleness(item, now)
	score.Volatility, score.RecentChange = s.history(ctx, item, now)
	score.AlertPressure = s.alertPressure(ctx, item)
	score.Total = score.Staleness + score.Volatility + score.AlertPressure + score.RecentChange
	return score
}

// staleness grows linearly with time since the last successful refresh.
// Never-refreshed items get a fixed high score so they surface first.
func (s *Scorer) staleness(item model.TrackedItem, now time.Time) float64 {
	if item.UpdatedAt == nil {
		return s.cfg.NeverUpdatedScore
	}
	hours := now.Sub(*item.UpdatedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return s.cfg.StalenessWeight * hours / s.cfg.TargetInterval.Hours()
}

// history derives the volatility and recent-change components from the
// lookback window in one query.
func (s *Scorer) history(ctx context.Context, item model.TrackedItem, now time.Time) (volatility, recentChange float64) {
	obs, err := s.store.RecentObservations(ctx, item.ID, now.Add(-s.cfg.Lookback))
	if err != nil {
		zap.L().Warn("scoring: history query failed, using default volatility",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return s.cfg.DefaultVolatility, 0
	}

	volatility = s.volatilityOf(obs)

	cutoff := now.Add(-s.cfg.RecentChangeSpan)
	var lo, hi float64
	for _, o := range obs {
		if o.ObservedAt.Before(cutoff) {
			continue
		}
		if lo == 0 || o.Price < lo {
			lo = o.Price
		}
		if o.Price > hi {
			hi = o.Price
		}
	}
	if lo > 0 && (hi-lo)/lo >= s.cfg.RecentChangePct {
		recentChange = s.cfg.RecentChangeBonus
	}
	return volatility, recentChange
}

// volatilityOf is the coefficient of variation of observed prices, scaled
// and capped. Thin history gets a fixed medium-low default instead of a
// misleading zero.
func (s *Scorer) volatilityOf(obs []model.PriceObservation) float64 {
	if len(obs) < 3 {
		return s.cfg.DefaultVolatility
	}

	var sum float64
	for _, o := range obs {
		sum += o.Price
	}
	mean := sum / float64(len(obs))
	if mean <= 0 {
		return s.cfg.DefaultVolatility
	}

	var sq float64
	for _, o := range obs {
		d := o.Price - mean
		sq += d * d
	}
	cv := math.Sqrt(sq/float64(len(obs))) / mean

	v := cv * s.cfg.VolatilityScale
	if v > s.cfg.VolatilityCap {
		v = s.cfg.VolatilityCap
	}
	return v
}

// alertPressure weights items that people are actively waiting on.
func (s *Scorer) alertPressure(ctx context.Context, item model.TrackedItem) float64 {
	n, err := s.store.CountActiveAlerts(ctx, item.ID)
	if err != nil {
		zap.L().Warn("scoring: alert count query failed, using zero pressure",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return 0
	}
	if n > s.cfg.AlertCountCap {
		n = s.cfg.AlertCountCap
	}
	return float64(n) * s.cfg.AlertMultiplier
}
