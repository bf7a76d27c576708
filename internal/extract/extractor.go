// Package extract reads product fields out of fetched documents. Five
// strategies run in a fixed trust order; their partial results are merged
// field-by-field and price readings feed a consensus resolver.
package extract

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/normalize"
)

// Input is one fetched document plus the locator it came from.
type Input struct {
	Doc     *goquery.Document
	Locator normalize.Locator
}

// Extractor is a single field extraction strategy. Extract must be
// side-effect free and must return an empty PartialRecord for malformed or
// unrecognized content, never an error: a strategy that finds nothing is a
// normal outcome.
type Extractor interface {
	Name() model.FieldSource
	Extract(ctx context.Context, in Input) model.PartialRecord
}
