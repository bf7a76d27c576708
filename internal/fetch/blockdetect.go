package fetch

import (
	"net/http"
	"strings"
)

// BlockType identifies the kind of anti-automation defense detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockForbidden  BlockType = "forbidden"
	BlockRateLimit  BlockType = "rate_limit"
)

var captchaMarkers = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"robot check",
	"are you a robot",
	"verify you are human",
	"automated access",
	"enter the characters you see below",
	"to discuss automated access",
}

var cloudflareMarkers = []string{
	"checking your browser before accessing",
	"cf-browser-verification",
	"cloudflare ray id",
	"attention required! | cloudflare",
	"just a moment...",
}

// DetectBlock inspects a response and its body for anti-automation
// defenses. Detection is heuristic: a short body full of challenge markers,
// a challenge status code, or a JS shell with no real content.
func DetectBlock(resp *http.Response, body string) (bool, BlockType) {
	lower := strings.ToLower(body)

	for _, marker := range cloudflareMarkers {
		if strings.Contains(lower, marker) {
			return true, BlockCloudflare
		}
	}
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true, BlockCaptcha
		}
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusForbidden:
			return true, BlockForbidden
		case http.StatusTooManyRequests:
			return true, BlockRateLimit
		case 503:
			// challenge pages are served as 503 by several CDNs
			if resp.Header.Get("Server") == "cloudflare" {
				return true, BlockCloudflare
			}
		}
	}

	// a tiny body that is mostly script is a JS challenge shell
	if len(body) > 0 && len(body) < 2048 &&
		strings.Contains(lower, "<script") && !strings.Contains(lower, "<h1") {
		scriptShare := float64(strings.Count(lower, "script")) * 8 / float64(len(body))
		if scriptShare > 0.01 {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
