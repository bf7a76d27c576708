package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/model"
)

// AuxEndpoint queries a secondary price API keyed by the platform product
// ID. Price backfill only: it never supplies a name, so it cannot complete
// an extraction on its own. Disabled when no base URL is configured.
type AuxEndpoint struct {
	BaseURL string
	Client  *http.Client
}

// NewAuxEndpoint builds the aux price strategy. An empty baseURL yields a
// strategy that always returns an empty record.
func NewAuxEndpoint(baseURL string, timeout time.Duration) *AuxEndpoint {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuxEndpoint{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (*AuxEndpoint) Name() model.FieldSource { return model.SourceAuxEndpoint }

type auxResponse struct {
	Price    *float64 `json:"price"`
	Currency string   `json:"currency"`
}

func (a *AuxEndpoint) Extract(ctx context.Context, in Input) model.PartialRecord {
	var rec model.PartialRecord
	if a.BaseURL == "" || in.Locator.ExternalID == "" {
		return rec
	}

	endpoint := a.BaseURL + "?id=" + url.QueryEscape(in.Locator.ExternalID) +
		"&platform=" + url.QueryEscape(in.Locator.Platform)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return rec
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		zap.L().Debug("aux price endpoint unreachable", zap.Error(err))
		return rec
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rec
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return rec
	}

	var out auxResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return rec
	}

	if out.Price != nil && Plausible(*out.Price) {
		rec.Price = out.Price
		if ValidCurrency(out.Currency) {
			rec.Currency = out.Currency
		}
	}
	return rec
}
