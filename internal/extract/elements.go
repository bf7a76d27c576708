package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricepulse/pricewatch/internal/model"
)

// Elements reads product fields from known page element selectors. Each
// field has its own ordered selector list; the first selector yielding
// non-empty text wins. Fields are independent, unlike structured data.
type Elements struct{}

func (Elements) Name() model.FieldSource { return model.SourceElements }

var (
	nameSelectors = []string{
		"#productTitle",
		"span.B_NuCI",
		".product-title",
		".product-name",
		"h1.pdp-title",
		"h1[itemprop=name]",
		"h1",
	}

	priceSelectors = []string{
		"span.priceToPay span.a-offscreen",
		".priceToPay .a-offscreen",
		"#priceblock_ourprice",
		"#priceblock_dealprice",
		".a-price .a-offscreen",
		"div._30jeq3._16Jk6d",
		"div._30jeq3",
		"[itemprop=price]",
		".product-price",
		".price",
	}

	imageSelectors = []string{
		"#landingImage",
		"img._396cs4",
		"img[itemprop=image]",
		".product-image img",
	}

	brandSelectors = []string{
		"#bylineInfo",
		"a#brand",
		".product-brand",
		"[itemprop=brand]",
	}

	availabilitySelectors = []string{
		"#availability span",
		"#availability",
		".availability",
		"[itemprop=availability]",
	}
)

func (Elements) Extract(_ context.Context, in Input) model.PartialRecord {
	var rec model.PartialRecord
	if in.Doc == nil {
		return rec
	}

	rec.Name = firstText(in.Doc, nameSelectors)

	if raw := firstText(in.Doc, priceSelectors); raw != "" {
		if p := ParsePrice(raw); p != nil && Plausible(*p) {
			rec.Price = p
			rec.Currency = CurrencyFromText(raw)
		}
	}
	if raw, ok := priceAttr(in.Doc); rec.Price == nil && ok {
		if p := ParsePrice(raw); p != nil && Plausible(*p) {
			rec.Price = p
		}
	}

	rec.ImageURL = firstImage(in.Doc)
	rec.Brand = cleanBrand(firstText(in.Doc, brandSelectors))
	rec.Availability = normalizeAvailability(firstText(in.Doc, availabilitySelectors))

	return rec
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// priceAttr covers meta-style elements carrying the price in a content
// attribute rather than text.
func priceAttr(doc *goquery.Document) (string, bool) {
	return doc.Find("[itemprop=price]").First().Attr("content")
}

func firstImage(doc *goquery.Document) string {
	for _, sel := range imageSelectors {
		img := doc.Find(sel).First()
		// prefer the full resolution asset when the page carries one
		if src, ok := img.Attr("data-old-hires"); ok && src != "" {
			return src
		}
		if src, ok := img.Attr("src"); ok && src != "" {
			return src
		}
	}
	return ""
}

func cleanBrand(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"Visit the ", "Brand: "} {
		text = strings.TrimPrefix(text, prefix)
	}
	text = strings.TrimSuffix(text, " Store")
	return strings.TrimSpace(text)
}

func normalizeAvailability(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "out of stock"), strings.Contains(lower, "unavailable"):
		return "out_of_stock"
	case strings.Contains(lower, "in stock"), strings.Contains(lower, "available"):
		return "in_stock"
	default:
		return ""
	}
}
