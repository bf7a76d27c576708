package extract

import (
	"math"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/resilience"
)

// ResolveConsensus picks one price from candidate readings gathered across
// strategies and fetch attempts.
//
// Zero plausible candidates resolve to nil, never a fabricated value. A
// single candidate is returned as read. With two or more, readings are
// rounded to whole currency units and the most frequent rounded value wins;
// frequency ties break toward the value backed by the most trusted source.
// The returned price is the rounded consensus value.
func ResolveConsensus(candidates []model.PriceCandidate) *float64 {
	plausible := candidates[:0:0]
	for _, c := range candidates {
		if Plausible(c.Price) {
			plausible = append(plausible, c)
		} else {
			zap.L().Debug("discarded price candidate",
				zap.String("reason", string(resilience.FailImplausible)),
				zap.String("source", string(c.Source)),
				zap.Float64("price", c.Price))
		}
	}

	switch len(plausible) {
	case 0:
		return nil
	case 1:
		p := plausible[0].Price
		return &p
	}

	counts := make(map[float64]int)
	bestRank := make(map[float64]int)
	for _, c := range plausible {
		rounded := math.Round(c.Price)
		counts[rounded]++
		rank := c.Source.Rank()
		if cur, ok := bestRank[rounded]; !ok || rank < cur {
			bestRank[rounded] = rank
		}
	}

	var winner float64
	winnerCount := -1
	for value, count := range counts {
		switch {
		case count > winnerCount:
			winner, winnerCount = value, count
		case count == winnerCount && bestRank[value] < bestRank[winner]:
			winner = value
		case count == winnerCount && bestRank[value] == bestRank[winner] && value < winner:
			// deterministic pick when source trust also ties
			winner = value
		}
	}
	return &winner
}
