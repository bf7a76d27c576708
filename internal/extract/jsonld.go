package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricepulse/pricewatch/internal/model"
)

// StructuredData reads JSON-LD Product blocks. The most trusted strategy:
// when a Product node carries both name and offer price, the pair is taken
// atomically so the name and price cannot come from different products on
// the same page.
type StructuredData struct{}

func (StructuredData) Name() model.FieldSource { return model.SourceStructuredData }

func (StructuredData) Extract(_ context.Context, in Input) model.PartialRecord {
	var rec model.PartialRecord
	if in.Doc == nil {
		return rec
	}

	in.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, node := range parseLDNodes(s.Text()) {
			if !isProductNode(node) {
				continue
			}
			candidate := productRecord(node)
			// name+price must come from the same node or neither is used
			if candidate.Name != "" && candidate.Price != nil {
				rec = candidate
				return false
			}
			if rec.Empty() && !candidate.Empty() {
				rec = candidate
			}
		}
		return true
	})

	// Reject half pairs: structured data is only trusted when atomic.
	if rec.Name == "" || rec.Price == nil {
		return model.PartialRecord{}
	}
	return rec
}

// parseLDNodes handles both a single JSON object and a top-level array,
// plus @graph containers. Malformed JSON yields nothing.
func parseLDNodes(raw string) []map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var nodes []map[string]any

	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if graph, ok := single["@graph"].([]any); ok {
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					nodes = append(nodes, m)
				}
			}
			return nodes
		}
		return []map[string]any{single}
	}

	var list []map[string]any
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	return nil
}

func isProductNode(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

func productRecord(node map[string]any) model.PartialRecord {
	rec := model.PartialRecord{
		Name:  strings.TrimSpace(stringField(node, "name")),
		Brand: brandName(node["brand"]),
	}

	switch img := node["image"].(type) {
	case string:
		rec.ImageURL = img
	case []any:
		if len(img) > 0 {
			if s, ok := img[0].(string); ok {
				rec.ImageURL = s
			}
		}
	case map[string]any:
		rec.ImageURL = stringField(img, "url")
	}

	offer := firstOffer(node["offers"])
	if offer != nil {
		if p := offerPrice(offer); p != nil && Plausible(*p) {
			rec.Price = p
		}
		if cur := stringField(offer, "priceCurrency"); ValidCurrency(cur) {
			rec.Currency = cur
		}
		if avail := stringField(offer, "availability"); avail != "" {
			rec.Availability = availabilityLabel(avail)
		}
	}
	return rec
}

func firstOffer(v any) map[string]any {
	switch offers := v.(type) {
	case map[string]any:
		return offers
	case []any:
		for _, o := range offers {
			if m, ok := o.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// offerPrice accepts both JSON numbers and numeric strings, plus the
// AggregateOffer lowPrice variant.
func offerPrice(offer map[string]any) *float64 {
	for _, key := range []string{"price", "lowPrice"} {
		switch v := offer[key].(type) {
		case float64:
			if v > 0 {
				p := v
				return &p
			}
		case string:
			if p := ParsePrice(v); p != nil {
				return p
			}
		}
	}
	return nil
}

func brandName(v any) string {
	switch b := v.(type) {
	case string:
		return strings.TrimSpace(b)
	case map[string]any:
		return strings.TrimSpace(stringField(b, "name"))
	}
	return ""
}

// availabilityLabel maps schema.org availability URLs to short labels.
func availabilityLabel(v string) string {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "instock"):
		return "in_stock"
	case strings.Contains(v, "outofstock"):
		return "out_of_stock"
	case strings.Contains(v, "preorder"):
		return "preorder"
	default:
		return ""
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
