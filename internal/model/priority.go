package model

// PriorityScore holds the per-component refresh priority of one item for
// a single scheduling cycle. Scores are transient: recomputed every cycle,
// never persisted.
type PriorityScore struct {
	ItemID        string  `json:"item_id"`
	Staleness     float64 `json:"staleness"`
	Volatility    float64 `json:"volatility"`
	AlertPressure float64 `json:"alert_pressure"`
	RecentChange  float64 `json:"recent_change"`
	Total         float64 `json:"total"`
}
