package schedule

import (
	"context"
	"sort"

	"github.com/pricepulse/pricewatch/internal/model"
)

// Plan scores every item against one snapshot and returns the top batch in
// refresh order. Ties on total break toward the staler item. A bound of
// zero or less means everything.
func Plan(ctx context.Context, scorer *Scorer, items []model.TrackedItem, bound int) []model.TrackedItem {
	type scored struct {
		item  model.TrackedItem
		score model.PriorityScore
	}

	scoredItems := make([]scored, 0, len(items))
	for _, item := range items {
		scoredItems = append(scoredItems, scored{item: item, score: scorer.Score(ctx, item)})
	}

	sort.SliceStable(scoredItems, func(i, j int) bool {
		a, b := scoredItems[i].score, scoredItems[j].score
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Staleness > b.Staleness
	})

	if bound > 0 && bound < len(scoredItems) {
		scoredItems = scoredItems[:bound]
	}

	planned := make([]model.TrackedItem, len(scoredItems))
	for i, s := range scoredItems {
		planned[i] = s.item
	}
	return planned
}
