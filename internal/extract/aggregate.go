package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/model"
)

// Aggregator runs extraction strategies in trust order and merges their
// partial results first-writer-wins: once a field is filled, later
// strategies cannot overwrite it. Price candidates are collected from every
// strategy that runs, even after the record is complete for merging
// purposes, so the consensus resolver sees all readings.
type Aggregator struct {
	extractors []Extractor
}

// NewAggregator builds an aggregator over the given strategies, which must
// already be in trust order.
func NewAggregator(extractors ...Extractor) *Aggregator {
	return &Aggregator{extractors: extractors}
}

// DefaultExtractors returns the standard strategy chain. aux may be nil
// when no secondary price endpoint is configured.
func DefaultExtractors(aux *AuxEndpoint) []Extractor {
	chain := []Extractor{StructuredData{}, Elements{}, PageMeta{}}
	if aux != nil && aux.BaseURL != "" {
		chain = append(chain, aux)
	}
	chain = append(chain, FreeText{})
	return chain
}

// Run executes the strategy chain against one document. The chain stops
// early once both name and price are present; Method records the strategy
// after whose merge that happened.
func (a *Aggregator) Run(ctx context.Context, in Input) model.ExtractionOutcome {
	merged := model.Record{FieldSources: make(map[string]model.FieldSource)}
	var candidates []model.PriceCandidate

	for _, ex := range a.extractors {
		if ctx.Err() != nil {
			break
		}
		partial := ex.Extract(ctx, in)
		if partial.Empty() {
			continue
		}

		source := ex.Name()
		if partial.Price != nil && Plausible(*partial.Price) {
			candidates = append(candidates, model.PriceCandidate{Source: source, Price: *partial.Price})
		}

		mergeField(&merged.Name, partial.Name, "name", source, merged.FieldSources)
		mergeField(&merged.Currency, partial.Currency, "currency", source, merged.FieldSources)
		mergeField(&merged.ImageURL, partial.ImageURL, "image_url", source, merged.FieldSources)
		mergeField(&merged.Brand, partial.Brand, "brand", source, merged.FieldSources)
		mergeField(&merged.Availability, partial.Availability, "availability", source, merged.FieldSources)
		if merged.Price == nil && partial.Price != nil && Plausible(*partial.Price) {
			merged.Price = partial.Price
			merged.FieldSources["price"] = source
		}

		if merged.Name != "" && merged.Price != nil {
			merged.Method = source
			break
		}
	}

	if merged.Name != "" {
		merged.Name = CleanName(merged.Name)
		// advisory enrichment: backfill a missing brand from the name, but
		// never overwrite one a strategy actually read
		if merged.Brand == "" {
			if md := DeriveMetadata(merged.Name); md.Brand != "" {
				merged.Brand = md.Brand
				merged.FieldSources["brand"] = model.SourceDerived
			}
		}
	}

	switch {
	case merged.Name != "" && merged.Price != nil:
		return model.ExtractionOutcome{
			Kind:       model.OutcomeComplete,
			Record:     &merged,
			Candidates: candidates,
		}
	case merged.Name != "":
		zap.L().Debug("extraction found name but no plausible price",
			zap.String("locator", in.Locator.Canonical))
		return model.ExtractionOutcome{
			Kind:       model.OutcomePartial,
			Record:     &merged,
			Candidates: candidates,
			Reasons:    []string{"price_missing"},
		}
	default:
		return model.ExtractionOutcome{
			Kind:       model.OutcomeNoSignal,
			Candidates: candidates,
			Reasons:    []string{"no_fields_extracted"},
		}
	}
}

func mergeField(dst *string, src, field string, source model.FieldSource, sources map[string]model.FieldSource) {
	if *dst == "" && src != "" {
		*dst = src
		sources[field] = source
	}
}
