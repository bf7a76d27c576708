package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/pricepulse/pricewatch/internal/model"
)

// FreeText scans visible page text for currency-prefixed numbers. The last
// resort strategy: it only runs when everything else came up empty, and its
// readings rank lowest in consensus.
type FreeText struct{}

func (FreeText) Name() model.FieldSource { return model.SourceFreeText }

var currencyAmount = regexp.MustCompile(`(?:₹|Rs\.?\s?|INR\s?|\$|€|£)\s*(\d[\d,]*(?:\.\d+)?)`)

func (FreeText) Extract(_ context.Context, in Input) model.PartialRecord {
	var rec model.PartialRecord
	if in.Doc == nil {
		return rec
	}

	// script and style bodies are full of numbers that are not prices
	doc := in.Doc.Clone()
	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()

	if m := currencyAmount.FindStringSubmatch(text); len(m) == 2 {
		if p := ParsePrice(m[1]); p != nil && Plausible(*p) {
			rec.Price = p
			rec.Currency = CurrencyFromText(m[0])
		}
	}

	if title := strings.TrimSpace(in.Doc.Find("title").First().Text()); len(title) > 5 {
		rec.Name = title
	}
	return rec
}
