// Package alert evaluates price targets and delivers notifications.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pricepulse/pricewatch/internal/model"
)

// Health reports the notifier's last known delivery capability. Callers
// receive it explicitly; there is no hidden shared state behind it.
type Health struct {
	Verified  bool
	CheckedAt time.Time
	LastError string
}

// Notifier delivers one triggered alert.
type Notifier interface {
	Send(ctx context.Context, a model.Alert, item model.TrackedItem, price float64) error
	Health() Health
}

// webhookPayload is the JSON body posted for a triggered alert.
type webhookPayload struct {
	Event        string    `json:"event"`
	ItemID       string    `json:"item_id"`
	ItemName     string    `json:"item_name"`
	Locator      string    `json:"locator"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	TargetPrice  float64   `json:"target_price"`
	NotifyTarget string    `json:"notify_target"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// WebhookNotifier posts alert payloads to a configured webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	health Health
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, a model.Alert, item model.TrackedItem, price float64) error {
	if n.url == "" {
		return eris.New("alert: no webhook url configured")
	}

	payload, err := json.Marshal(webhookPayload{
		Event:        "price_drop",
		ItemID:       item.ID,
		ItemName:     item.Name,
		Locator:      item.Locator,
		Price:        price,
		Currency:     item.Currency,
		TargetPrice:  a.TargetPrice,
		NotifyTarget: a.NotifyTarget,
		TriggeredAt:  time.Now().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "alert: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.recordHealth(false, err.Error())
		return eris.Wrap(err, "alert: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
		n.recordHealth(false, err.Error())
		return err
	}

	n.recordHealth(true, "")
	return nil
}

func (n *WebhookNotifier) Health() Health {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.health
}

func (n *WebhookNotifier) recordHealth(verified bool, lastError string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.health = Health{Verified: verified, CheckedAt: time.Now().UTC(), LastError: lastError}
}
