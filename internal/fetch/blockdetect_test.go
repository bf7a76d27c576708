package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlockCaptcha(t *testing.T) {
	bodies := []string{
		"<html><body>Robot Check: enter the characters you see below</body></html>",
		"<html><body>please complete the reCAPTCHA to continue</body></html>",
		"<html><body>To discuss automated access to Amazon data please contact us.</body></html>",
	}
	for _, body := range bodies {
		blocked, blockType := DetectBlock(&http.Response{StatusCode: 200}, body)
		assert.True(t, blocked, body)
		assert.Equal(t, BlockCaptcha, blockType, body)
	}
}

func TestDetectBlockCloudflare(t *testing.T) {
	blocked, blockType := DetectBlock(&http.Response{StatusCode: 200},
		"<html><title>Just a moment...</title><body>Checking your browser before accessing</body></html>")
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, blockType)
}

func TestDetectBlockStatusCodes(t *testing.T) {
	blocked, blockType := DetectBlock(&http.Response{StatusCode: 403}, "<html><body>denied</body></html>")
	assert.True(t, blocked)
	assert.Equal(t, BlockForbidden, blockType)

	blocked, blockType = DetectBlock(&http.Response{StatusCode: 429}, "<html><body>slow down</body></html>")
	assert.True(t, blocked)
	assert.Equal(t, BlockRateLimit, blockType)
}

func TestDetectBlockJSShell(t *testing.T) {
	blocked, blockType := DetectBlock(&http.Response{StatusCode: 200},
		`<html><head><script>window.location="/challenge"</script></head><body></body></html>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, blockType)
}

func TestDetectBlockCleanPage(t *testing.T) {
	blocked, blockType := DetectBlock(&http.Response{StatusCode: 200},
		"<html><body><h1>Acme Widget</h1><p>A perfectly normal product page with plenty of content about the widget and its many features.</p></body></html>")
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, blockType)
}

func TestIdentityPoolRotates(t *testing.T) {
	pool := NewIdentityPool("ua-1", "ua-2", "ua-3")

	assert.Equal(t, "ua-1", pool.Next().UserAgent)
	assert.Equal(t, "ua-2", pool.Next().UserAgent)
	assert.Equal(t, "ua-3", pool.Next().UserAgent)
	assert.Equal(t, "ua-1", pool.Next().UserAgent)
}

func TestIdentityPoolDefaults(t *testing.T) {
	pool := NewIdentityPool()
	assert.Greater(t, pool.Size(), 1)
	assert.NotEmpty(t, pool.Next().UserAgent)
	assert.NotEmpty(t, pool.Next().AcceptLanguage)
}
