package extract

import (
	"regexp"
	"strings"
)

// Metadata is derived catalog enrichment parsed from a product name.
type Metadata struct {
	Brand       string
	Category    string
	KeyFeatures []string
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	parenGroup    = regexp.MustCompile(`\(([^)]+)\)`)
	featureToken  = regexp.MustCompile(`\b(\d+\s?(?:GB|TB|MP|mAh|mm|cm|inch|Hz|W|kg|g|ml|L))\b`)
)

// CleanName collapses whitespace and strips boilerplate decoration from an
// extracted product name.
func CleanName(name string) string {
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	for _, prefix := range []string{"Buy ", "Shop "} {
		name = strings.TrimPrefix(name, prefix)
	}
	return strings.TrimSpace(strings.Trim(name, "-|: "))
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"phone", []string{"phone", "smartphone", "iphone", "galaxy"}},
	{"laptop", []string{"laptop", "notebook", "macbook", "chromebook"}},
	{"audio", []string{"headphone", "earbud", "earphone", "speaker", "soundbar"}},
	{"tv", []string{" tv", "television", "smart tv"}},
	{"wearable", []string{"watch", "band", "tracker"}},
	{"appliance", []string{"refrigerator", "washing machine", "microwave", "air conditioner"}},
}

// DeriveMetadata parses brand, a coarse category, and key feature tokens
// out of a product name. Best effort: every field may be empty.
func DeriveMetadata(name string) Metadata {
	var md Metadata
	name = CleanName(name)
	if name == "" {
		return md
	}

	// first token is the brand on most marketplace listings
	if fields := strings.Fields(name); len(fields) > 0 {
		first := strings.Trim(fields[0], ",")
		if len(first) >= 2 && !strings.ContainsAny(first, "0123456789") {
			md.Brand = first
		}
	}

	lower := strings.ToLower(name)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				md.Category = ck.category
				break
			}
		}
		if md.Category != "" {
			break
		}
	}

	seen := make(map[string]bool)
	for _, m := range featureToken.FindAllString(name, -1) {
		if !seen[m] {
			seen[m] = true
			md.KeyFeatures = append(md.KeyFeatures, m)
		}
	}
	for _, m := range parenGroup.FindAllStringSubmatch(name, -1) {
		part := strings.TrimSpace(m[1])
		if part != "" && len(part) <= 40 && !seen[part] {
			seen[part] = true
			md.KeyFeatures = append(md.KeyFeatures, part)
		}
	}
	return md
}
