package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pricepulse/pricewatch/internal/db"
	"github.com/pricepulse/pricewatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot refresh path.
var preparedStatements = map[string]string{
	"insert_observation": `INSERT INTO observations (id, item_id, price, source, observed_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_item_price":  `UPDATE items SET current_price = $1, updated_at = $2 WHERE id = $3`,
	"get_item":           `SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at FROM items WHERE id = $1`,
	"untriggered_alerts": `SELECT id, item_id, notify_target, target_price, triggered, triggered_at, triggered_price, created_at FROM alerts WHERE item_id = $1 AND NOT triggered AND target_price >= $2 ORDER BY created_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	locator       TEXT NOT NULL UNIQUE,
	platform      TEXT NOT NULL,
	external_id   TEXT,
	name          TEXT NOT NULL,
	current_price DOUBLE PRECISION,
	currency      TEXT NOT NULL DEFAULT '',
	image_url     TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS observations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item_id     TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	price       DOUBLE PRECISION NOT NULL,
	source      TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item_id         TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	notify_target   TEXT NOT NULL,
	target_price    DOUBLE PRECISION NOT NULL,
	triggered       BOOLEAN NOT NULL DEFAULT false,
	triggered_at    TIMESTAMPTZ,
	triggered_price DOUBLE PRECISION,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_observations_item_time ON observations(item_id, observed_at);
CREATE INDEX IF NOT EXISTS idx_alerts_item ON alerts(item_id);
CREATE INDEX IF NOT EXISTS idx_alerts_armed ON alerts(item_id, triggered);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *model.TrackedItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO items (id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.Locator, item.Platform, item.ExternalID, item.Name,
		item.CurrentPrice, item.Currency, item.ImageURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateLocator
		}
		return eris.Wrap(err, "postgres: insert item")
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*model.TrackedItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at
		 FROM items WHERE id = $1`, id)
	return scanPgItem(row)
}

func (s *PostgresStore) GetItemByLocator(ctx context.Context, locator string) (*model.TrackedItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at
		 FROM items WHERE locator = $1`, locator)
	return scanPgItem(row)
}

func (s *PostgresStore) ListItems(ctx context.Context) ([]model.TrackedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, locator, platform, external_id, name, current_price, currency, image_url, created_at, updated_at
		 FROM items ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.TrackedItem
	for rows.Next() {
		it, err := scanPgItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete item %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", id)
	}
	return nil
}

func (s *PostgresStore) CommitRefresh(ctx context.Context, itemID string, price float64, source model.FieldSource, observedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin refresh tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO observations (id, item_id, price, source, observed_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), itemID, price, string(source), observedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert observation for item %s", itemID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE items SET current_price = $1, updated_at = $2 WHERE id = $3`,
		price, observedAt.UTC(), itemID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update item price %s", itemID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", itemID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit refresh")
}

func (s *PostgresStore) ListObservations(ctx context.Context, itemID string, limit int) ([]model.PriceObservation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, price, source, observed_at FROM observations
		 WHERE item_id = $1 ORDER BY observed_at DESC LIMIT $2`,
		itemID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observations")
	}
	defer rows.Close()
	return collectPgObservations(rows)
}

func (s *PostgresStore) RecentObservations(ctx context.Context, itemID string, since time.Time) ([]model.PriceObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, price, source, observed_at FROM observations
		 WHERE item_id = $1 AND observed_at >= $2 ORDER BY observed_at`,
		itemID, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent observations")
	}
	defer rows.Close()
	return collectPgObservations(rows)
}

func (s *PostgresStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, item_id, notify_target, target_price, triggered, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		alert.ID, alert.ItemID, alert.NotifyTarget, alert.TargetPrice, alert.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert alert")
}

func (s *PostgresStore) ListAlerts(ctx context.Context, itemID string) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, notify_target, target_price, triggered, triggered_at, triggered_price, created_at
		 FROM alerts WHERE item_id = $1 ORDER BY created_at`,
		itemID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alerts")
	}
	defer rows.Close()
	return collectPgAlerts(rows)
}

func (s *PostgresStore) CountActiveAlerts(ctx context.Context, itemID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE item_id = $1 AND NOT triggered`,
		itemID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count active alerts")
}

func (s *PostgresStore) UntriggeredAlerts(ctx context.Context, itemID string, price float64) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, notify_target, target_price, triggered, triggered_at, triggered_price, created_at
		 FROM alerts WHERE item_id = $1 AND NOT triggered AND target_price >= $2 ORDER BY created_at`,
		itemID, price)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: untriggered alerts")
	}
	defer rows.Close()
	return collectPgAlerts(rows)
}

func (s *PostgresStore) MarkAlertTriggered(ctx context.Context, alertID string, price float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET triggered = true, triggered_at = $1, triggered_price = $2
		 WHERE id = $3 AND NOT triggered`,
		at.UTC(), price, alertID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: trigger alert %s", alertID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanners

func scanPgItem(row pgx.Row) (*model.TrackedItem, error) {
	var it model.TrackedItem
	var externalID, imageURL *string
	var currentPrice *float64
	var updatedAt *time.Time

	err := row.Scan(&it.ID, &it.Locator, &it.Platform, &externalID, &it.Name,
		&currentPrice, &it.Currency, &imageURL, &it.CreatedAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan item")
	}

	if externalID != nil {
		it.ExternalID = *externalID
	}
	if imageURL != nil {
		it.ImageURL = *imageURL
	}
	it.CurrentPrice = currentPrice
	it.UpdatedAt = updatedAt
	return &it, nil
}

func collectPgObservations(rows pgx.Rows) ([]model.PriceObservation, error) {
	var obs []model.PriceObservation
	for rows.Next() {
		var o model.PriceObservation
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Price, &o.Source, &o.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "postgres: iterate observations")
}

func collectPgAlerts(rows pgx.Rows) ([]model.Alert, error) {
	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.ItemID, &a.NotifyTarget, &a.TargetPrice,
			&a.Triggered, &a.TriggeredAt, &a.TriggeredPrice, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		alerts = append(alerts, a)
	}
	return alerts, eris.Wrap(rows.Err(), "postgres: iterate alerts")
}
