// Package store persists tracked items, price observations, and alerts.
// Two implementations share one interface: an embedded sqlite store for
// single-node use and a postgres store for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pricepulse/pricewatch/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicateLocator is returned when an item with the same canonical
// locator is already tracked.
var ErrDuplicateLocator = eris.New("store: locator already tracked")

// Store is the persistence surface for the tracker.
type Store interface {
	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error

	CreateItem(ctx context.Context, item *model.TrackedItem) error
	GetItem(ctx context.Context, id string) (*model.TrackedItem, error)
	GetItemByLocator(ctx context.Context, locator string) (*model.TrackedItem, error)
	ListItems(ctx context.Context) ([]model.TrackedItem, error)
	// DeleteItem removes an item and cascades to its observations and alerts.
	DeleteItem(ctx context.Context, id string) error

	// CommitRefresh atomically appends a price observation and updates the
	// item's current price and updated_at. Either both writes land or
	// neither does.
	CommitRefresh(ctx context.Context, itemID string, price float64, source model.FieldSource, observedAt time.Time) error

	ListObservations(ctx context.Context, itemID string, limit int) ([]model.PriceObservation, error)
	// RecentObservations returns observations at or after since, oldest first.
	RecentObservations(ctx context.Context, itemID string, since time.Time) ([]model.PriceObservation, error)

	CreateAlert(ctx context.Context, alert *model.Alert) error
	ListAlerts(ctx context.Context, itemID string) ([]model.Alert, error)
	// CountActiveAlerts counts untriggered alerts for the item.
	CountActiveAlerts(ctx context.Context, itemID string) (int, error)
	// UntriggeredAlerts returns armed alerts whose target is at or above
	// price, i.e. the alerts the new price satisfies.
	UntriggeredAlerts(ctx context.Context, itemID string, price float64) ([]model.Alert, error)
	// MarkAlertTriggered flips one armed alert to triggered, recording the
	// price and time. Returns ErrNotFound when the alert is gone or was
	// already triggered, so double notification cannot happen.
	MarkAlertTriggered(ctx context.Context, alertID string, price float64, at time.Time) error

	Close() error
}
