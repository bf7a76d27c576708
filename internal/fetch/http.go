package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pricepulse/pricewatch/internal/resilience"
)

// maxBodyBytes caps how much of a response is read. Product pages that
// matter fit well under this; anything larger is padding or streaming.
const maxBodyBytes = 512 << 10

// HTTPClient fetches documents over HTTP with per-host rate limiting and
// per-host circuit breakers.
type HTTPClient struct {
	client   *http.Client
	breakers *resilience.HostBreakers

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	hostRate  rate.Limit
	hostBurst int
}

// HTTPClientConfig controls transport behavior.
type HTTPClientConfig struct {
	Timeout       time.Duration // per-request, default 20s
	HostInterval  time.Duration // min spacing between requests to one host, default 2s
	HostBurst     int           // default 1
	BreakerConfig resilience.CircuitBreakerConfig
}

// NewHTTPClient builds the production fetcher.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.HostInterval <= 0 {
		cfg.HostInterval = 2 * time.Second
	}
	if cfg.HostBurst <= 0 {
		cfg.HostBurst = 1
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return eris.New("stopped after 5 redirects")
				}
				return nil
			},
		},
		breakers:  resilience.NewHostBreakers(cfg.BreakerConfig),
		limiters:  make(map[string]*rate.Limiter),
		hostRate:  rate.Every(cfg.HostInterval),
		hostBurst: cfg.HostBurst,
	}
}

// Fetch retrieves and parses one document. The per-host limiter is waited
// on before the request; circuit breaker rejections surface as network
// errors so the retry controller backs off and rotates on.
func (c *HTTPClient) Fetch(ctx context.Context, locator string, id Identity) Result {
	host := hostOf(locator)

	if err := c.limiter(host).Wait(ctx); err != nil {
		return Result{Status: StatusNetworkError, Err: err}
	}

	var result Result
	err := c.breakers.Get(host).Execute(ctx, func(ctx context.Context) error {
		result = c.doFetch(ctx, locator, id)
		if result.Status == StatusNetworkError {
			return resilience.Failure(resilience.FailNetwork, "fetch failed", result.Err)
		}
		if result.Status == StatusBlocked {
			return resilience.Failure(resilience.FailBlocked, string(result.BlockType), nil)
		}
		return nil
	})
	if err != nil && result.Status == StatusOK {
		// breaker rejected the call before it ran
		return Result{Status: StatusNetworkError, Err: err}
	}
	return result
}

func (c *HTTPClient) doFetch(ctx context.Context, locator string, id Identity) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return Result{Status: StatusNetworkError, Err: err}
	}

	// Accept-Encoding is left to the transport: setting it by hand would
	// disable its transparent gzip decompression.
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept-Language", id.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Status: StatusNetworkError, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Status: StatusNetworkError, StatusCode: resp.StatusCode, Err: err}
	}
	body := string(raw)

	if blocked, blockType := DetectBlock(resp, body); blocked {
		zap.L().Debug("block detected",
			zap.String("host", hostOf(locator)),
			zap.String("block_type", string(blockType)),
			zap.Int("status", resp.StatusCode))
		return Result{Status: StatusBlocked, BlockType: blockType, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		return Result{
			Status:     StatusNetworkError,
			StatusCode: resp.StatusCode,
			Err:        resilience.Failure(resilience.FailNetwork, "http "+resp.Status, nil),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Result{Status: StatusNetworkError, StatusCode: resp.StatusCode, Err: err}
	}
	return Result{Status: StatusOK, Doc: doc, StatusCode: resp.StatusCode}
}

// BreakerStates reports the circuit state per host seen so far, for health
// reporting.
func (c *HTTPClient) BreakerStates() map[string]resilience.CircuitState {
	return c.breakers.States()
}

func (c *HTTPClient) limiter(host string) *rate.Limiter {
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(c.hostRate, c.hostBurst)
	c.limiters[host] = l
	return l
}

func hostOf(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return locator
	}
	return u.Host
}
