package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricepulse/pricewatch/internal/model"
)

// PageMeta reads Open Graph and product meta tags plus the document title.
// Less precise than element selectors: titles carry site suffixes and meta
// prices are often stale, so this strategy ranks below Elements.
type PageMeta struct{}

func (PageMeta) Name() model.FieldSource { return model.SourcePageMeta }

var titleSuffixes = []string{
	" | Amazon.in",
	" | Amazon.com",
	" - Amazon.in",
	" : Amazon.in",
	" - Flipkart.com",
	" | Flipkart.com",
}

func (PageMeta) Extract(_ context.Context, in Input) model.PartialRecord {
	var rec model.PartialRecord
	if in.Doc == nil {
		return rec
	}

	rec.Name = metaName(in.Doc)
	rec.ImageURL = metaContent(in.Doc, "og:image")

	for _, prop := range []string{"product:price:amount", "og:price:amount"} {
		raw := metaContent(in.Doc, prop)
		if raw == "" {
			continue
		}
		if p := ParsePrice(raw); p != nil && Plausible(*p) {
			rec.Price = p
			break
		}
	}
	for _, prop := range []string{"product:price:currency", "og:price:currency"} {
		if cur := metaContent(in.Doc, prop); ValidCurrency(cur) {
			rec.Currency = cur
			break
		}
	}

	return rec
}

func metaName(doc *goquery.Document) string {
	name := metaContent(doc, "og:title")
	if name == "" {
		name = strings.TrimSpace(doc.Find("title").First().Text())
	}
	for _, suffix := range titleSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	name = strings.TrimSpace(name)
	// short titles are navigation chrome, not product names
	if len(name) <= 5 {
		return ""
	}
	return name
}

func metaContent(doc *goquery.Document, property string) string {
	sel := `meta[property="` + property + `"]`
	if content, ok := doc.Find(sel).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	sel = `meta[name="` + property + `"]`
	if content, ok := doc.Find(sel).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}
