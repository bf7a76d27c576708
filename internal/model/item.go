// Package model defines the domain types shared across the tracking engine.
package model

import "time"

// TrackedItem is one external product listing being monitored for price.
// The canonical locator is unique across items; the store enforces it.
type TrackedItem struct {
	ID           string     `json:"id"`
	Locator      string     `json:"locator"`
	Platform     string     `json:"platform"`
	ExternalID   string     `json:"external_id,omitempty"`
	Name         string     `json:"name"`
	CurrentPrice *float64   `json:"current_price,omitempty"`
	Currency     string     `json:"currency"`
	ImageURL     string     `json:"image_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"` // last successful refresh; nil if never refreshed
}

// PriceObservation is one timestamped recorded price for an item.
// Observations are append-only; they are removed only by cascading
// item deletion.
type PriceObservation struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id"`
	Price      float64   `json:"price"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// Alert is a standing request to be notified when an item's price meets
// a target. Triggered is monotonic false→true; a triggered alert is never
// re-armed automatically.
type Alert struct {
	ID             string     `json:"id"`
	ItemID         string     `json:"item_id"`
	NotifyTarget   string     `json:"notify_target"`
	TargetPrice    float64    `json:"target_price"`
	Triggered      bool       `json:"triggered"`
	TriggeredAt    *time.Time `json:"triggered_at,omitempty"`
	TriggeredPrice *float64   `json:"triggered_price,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CycleSummary reports the outcome of one scheduling cycle.
type CycleSummary struct {
	Attempted  int   `json:"attempted"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}
