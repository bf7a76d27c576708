// Package normalize canonicalizes product page locators so the same
// listing always maps to the same tracked item.
package normalize

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Locator is a canonicalized reference to one product listing.
type Locator struct {
	Canonical  string // normalized URL, tracking params stripped
	Host       string
	Platform   string // "amazon", "flipkart", or "generic"
	ExternalID string // platform product identifier when recognizable
}

// Tracking and affiliate query parameters that never identify the product.
var droppedParams = map[string]bool{
	"ref": true, "ref_": true, "tag": true, "linkcode": true,
	"camp": true, "creative": true, "creativeasin": true,
	"pf_rd_r": true, "pf_rd_p": true, "th": true, "psc": true,
	"qid": true, "sr": true, "keywords": true, "crid": true,
	"sprefix": true, "spm": true, "fbclid": true, "gclid": true,
}

// Canonicalize parses and normalizes a raw product URL. Scheme and host are
// lowercased, fragments dropped, tracking parameters removed, and the
// platform product ID extracted when the URL shape is recognized.
func Canonicalize(raw string) (Locator, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Locator{}, eris.Wrap(err, "normalize: parse locator")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Locator{}, eris.Errorf("normalize: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Locator{}, eris.New("normalize: locator has no host")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	platform := detectPlatform(u.Host)
	externalID := extractExternalID(u, platform)

	q := u.Query()
	for param := range q {
		lower := strings.ToLower(param)
		if droppedParams[lower] || strings.HasPrefix(lower, "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	// Amazon listings collapse to the stable /dp/<id> form.
	if platform == "amazon" && externalID != "" {
		u.Path = "/dp/" + externalID
		u.RawQuery = ""
	}

	return Locator{
		Canonical:  u.String(),
		Host:       u.Host,
		Platform:   platform,
		ExternalID: externalID,
	}, nil
}

func detectPlatform(host string) string {
	switch {
	case strings.Contains(host, "amazon"):
		return "amazon"
	case strings.Contains(host, "flipkart"):
		return "flipkart"
	default:
		return "generic"
	}
}

// extractExternalID pulls the platform product identifier from the URL.
// Amazon product IDs are path segments starting with B0, at least 10 chars,
// under /dp/ or /gp/product/. Flipkart carries a pid query parameter.
func extractExternalID(u *url.URL, platform string) string {
	switch platform {
	case "amazon":
		if !strings.Contains(u.Path, "/dp/") && !strings.Contains(u.Path, "/gp/product/") {
			return ""
		}
		for _, segment := range strings.Split(u.Path, "/") {
			if strings.HasPrefix(segment, "B0") && len(segment) >= 10 {
				return segment
			}
		}
	case "flipkart":
		if pid := u.Query().Get("pid"); pid != "" {
			return pid
		}
	}
	return ""
}

// CustomName extracts a user-provided product name from locator query
// parameters, when present.
func CustomName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, param := range []string{"product_name", "name", "title", "product"} {
		if v := q.Get(param); v != "" {
			return v
		}
	}
	return ""
}
