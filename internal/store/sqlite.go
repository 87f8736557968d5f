package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. The default backend
// for single-operator deployments.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.Mutex
	hooks []func()
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS merchants (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	floor           TEXT NOT NULL DEFAULT '',
	health_score    REAL NOT NULL DEFAULT 0,
	risk_level      TEXT NOT NULL DEFAULT 'none',
	metrics         TEXT NOT NULL DEFAULT '{}',
	monthly_revenue REAL NOT NULL DEFAULT 0,
	monthly_rent    REAL NOT NULL DEFAULT 0,
	rent_ratio      REAL NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_merchants_risk_level ON merchants(risk_level);
CREATE INDEX IF NOT EXISTS idx_merchants_floor ON merchants(floor);
`

// Migrate creates the schema if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// GetAllMerchants returns the full roster ordered by id.
func (s *SQLiteStore) GetAllMerchants(ctx context.Context) ([]model.Merchant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, floor, health_score, risk_level, metrics,
		        monthly_revenue, monthly_rent, rent_ratio
		 FROM merchants ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list merchants")
	}
	defer rows.Close()

	var out []model.Merchant
	for rows.Next() {
		m, err := scanMerchant(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate merchants")
}

// GetMerchant returns one record, or nil when absent.
func (s *SQLiteStore) GetMerchant(ctx context.Context, id string) (*model.Merchant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, floor, health_score, risk_level, metrics,
		        monthly_revenue, monthly_rent, rent_ratio
		 FROM merchants WHERE id = ?`, id)
	m, err := scanMerchant(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// UpsertMerchant inserts or replaces a record and fires change hooks.
func (s *SQLiteStore) UpsertMerchant(ctx context.Context, m model.Merchant) error {
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO merchants (id, name, category, floor, health_score, risk_level,
		                        metrics, monthly_revenue, monthly_rent, rent_ratio, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   category = excluded.category,
		   floor = excluded.floor,
		   health_score = excluded.health_score,
		   risk_level = excluded.risk_level,
		   metrics = excluded.metrics,
		   monthly_revenue = excluded.monthly_revenue,
		   monthly_rent = excluded.monthly_rent,
		   rent_ratio = excluded.rent_ratio,
		   updated_at = datetime('now')`,
		m.ID, m.Name, m.Category, m.Floor, m.HealthScore, string(m.RiskLevel),
		string(metrics), m.MonthlyRevenue, m.MonthlyRent, m.RentRatio)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert merchant")
	}
	s.notify()
	return nil
}

// Subscribe registers a change hook.
func (s *SQLiteStore) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *SQLiteStore) notify() {
	s.mu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanMerchant decodes one row via the given scan function.
func scanMerchant(scan func(dest ...any) error) (model.Merchant, error) {
	var (
		m       model.Merchant
		risk    string
		metrics string
	)
	err := scan(&m.ID, &m.Name, &m.Category, &m.Floor, &m.HealthScore, &risk,
		&metrics, &m.MonthlyRevenue, &m.MonthlyRent, &m.RentRatio)
	if err != nil {
		return m, eris.Wrap(err, "store: scan merchant")
	}
	m.RiskLevel = model.RiskLevel(risk)
	if err := json.Unmarshal([]byte(metrics), &m.Metrics); err != nil {
		return m, eris.Wrap(err, "store: decode metrics")
	}
	return m, nil
}
