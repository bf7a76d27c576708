package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pricepulse/pricewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY,
	locator       TEXT NOT NULL UNIQUE,
	platform      TEXT NOT NULL,
	external_id   TEXT,
	name          TEXT NOT NULL,
	current_price REAL,
	currency      TEXT NOT NULL DEFAULT '',
	image_url     TEXT,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME
);

CREATE TABLE IF NOT EXISTS observations (
	id          TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	price       REAL NOT NULL,
	source      TEXT NOT NULL,
	observed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	notify_target   TEXT NOT NULL,
	target_price    REAL NOT NULL,
	triggered       INTEGER NOT NULL DEFAULT 0,
	triggered_at    DATETIME,
	triggered_price REAL,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_item_time ON observations(item_id, observed_at);
CREATE INDEX IF NOT EXISTS idx_alerts_item ON alerts(item_id);
CREATE INDEX IF NOT EXISTS idx_alerts_armed ON alerts(item_id, triggered);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateItem(ctx context.Context, item *model.TrackedItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Locator, item.Platform, item.ExternalID, item.Name,
		item.CurrentPrice, item.Currency, item.ImageURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateLocator
		}
		return eris.Wrap(err, "sqlite: insert item")
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.TrackedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at
		 FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (s *SQLiteStore) GetItemByLocator(ctx context.Context, locator string) (*model.TrackedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at
		 FROM items WHERE locator = ?`, locator)
	return scanItem(row)
}

func (s *SQLiteStore) ListItems(ctx context.Context) ([]model.TrackedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at
		 FROM items ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.TrackedItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete item %s", id)
	}
	return checkRowsAffected(res, "item", id)
}

func (s *SQLiteStore) CommitRefresh(ctx context.Context, itemID string, price float64, source model.FieldSource, observedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin refresh tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO observations (id, item_id, price, source, observed_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), itemID, price, string(source), observedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert observation for item %s", itemID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET current_price = ?, updated_at = ? WHERE id = ?`,
		price, observedAt.UTC(), itemID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update item price %s", itemID)
	}
	if err := checkRowsAffected(res, "item", itemID); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit refresh")
}

func (s *SQLiteStore) ListObservations(ctx context.Context, itemID string, limit int) ([]model.PriceObservation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, price, source, observed_at FROM observations
		 WHERE item_id = ? ORDER BY observed_at DESC LIMIT ?`,
		itemID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observations")
	}
	defer rows.Close()
	return collectObservations(rows)
}

func (s *SQLiteStore) RecentObservations(ctx context.Context, itemID string, since time.Time) ([]model.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, price, source, observed_at FROM observations
		 WHERE item_id = ? AND observed_at >= ? ORDER BY observed_at`,
		itemID, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent observations")
	}
	defer rows.Close()
	return collectObservations(rows)
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, item_id, notify_target, target_price, triggered, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		alert.ID, alert.ItemID, alert.NotifyTarget, alert.TargetPrice, alert.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert alert")
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, itemID string) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, notify_target, target_price, triggered, triggered_at, triggered_price, created_at
		 FROM alerts WHERE item_id = ? ORDER BY created_at`,
		itemID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alerts")
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (s *SQLiteStore) CountActiveAlerts(ctx context.Context, itemID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE item_id = ? AND triggered = 0`,
		itemID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count active alerts")
}

func (s *SQLiteStore) UntriggeredAlerts(ctx context.Context, itemID string, price float64) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, notify_target, target_price, triggered, triggered_at, triggered_price, created_at
		 FROM alerts WHERE item_id = ? AND triggered = 0 AND target_price >= ? ORDER BY created_at`,
		itemID, price)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: untriggered alerts")
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (s *SQLiteStore) MarkAlertTriggered(ctx context.Context, alertID string, price float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET triggered = 1, triggered_at = ?, triggered_price = ?
		 WHERE id = ? AND triggered = 0`,
		at.UTC(), price, alertID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: trigger alert %s", alertID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*model.TrackedItem, error) {
	var it model.TrackedItem
	var externalID, imageURL sql.NullString
	var currentPrice sql.NullFloat64
	var updatedAt sql.NullTime

	err := row.Scan(&it.ID, &it.Locator, &it.Platform, &externalID, &it.Name,
		&currentPrice, &it.Currency, &imageURL, &it.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan item")
	}

	it.ExternalID = externalID.String
	it.ImageURL = imageURL.String
	if currentPrice.Valid {
		it.CurrentPrice = &currentPrice.Float64
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		it.UpdatedAt = &t
	}
	return &it, nil
}

func collectObservations(rows *sql.Rows) ([]model.PriceObservation, error) {
	var obs []model.PriceObservation
	for rows.Next() {
		var o model.PriceObservation
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Price, &o.Source, &o.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "sqlite: iterate observations")
}

func collectAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var triggeredAt sql.NullTime
		var triggeredPrice sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.ItemID, &a.NotifyTarget, &a.TargetPrice,
			&a.Triggered, &triggeredAt, &triggeredPrice, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert")
		}
		if triggeredAt.Valid {
			t := triggeredAt.Time
			a.TriggeredAt = &t
		}
		if triggeredPrice.Valid {
			a.TriggeredPrice = &triggeredPrice.Float64
		}
		alerts = append(alerts, a)
	}
	return alerts, eris.Wrap(rows.Err(), "sqlite: iterate alerts")
}
