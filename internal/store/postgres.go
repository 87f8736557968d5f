package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// pgPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store over pgxpool for shared deployments where
// several dashboard instances read one roster.
type PostgresStore struct {
	pool pgPool

	mu    sync.Mutex
	hooks []func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// newPostgresWithPool wires an existing pool, used by tests.
func newPostgresWithPool(pool pgPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS merchants (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	floor           TEXT NOT NULL DEFAULT '',
	health_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_level      TEXT NOT NULL DEFAULT 'none',
	metrics         JSONB NOT NULL DEFAULT '{}',
	monthly_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
	monthly_rent    DOUBLE PRECISION NOT NULL DEFAULT 0,
	rent_ratio      DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_merchants_risk_level ON merchants(risk_level);
CREATE INDEX IF NOT EXISTS idx_merchants_floor ON merchants(floor);
`

const selectMerchantCols = `SELECT id, name, category, floor, health_score, risk_level, metrics,
       monthly_revenue, monthly_rent, rent_ratio FROM merchants`

// Migrate creates the schema if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// GetAllMerchants returns the full roster ordered by id.
func (s *PostgresStore) GetAllMerchants(ctx context.Context) ([]model.Merchant, error) {
	rows, err := s.pool.Query(ctx, selectMerchantCols+` ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list merchants")
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
	return out, eris.Wrap(rows.Err(), "postgres: iterate merchants")
}

// GetMerchant returns one record, or nil when absent.
func (s *PostgresStore) GetMerchant(ctx context.Context, id string) (*model.Merchant, error) {
	row := s.pool.QueryRow(ctx, selectMerchantCols+` WHERE id = $1`, id)
	m, err := scanMerchant(row.Scan)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// UpsertMerchant inserts or replaces a record and fires change hooks.
func (s *PostgresStore) UpsertMerchant(ctx context.Context, m model.Merchant) error {
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO merchants (id, name, category, floor, health_score, risk_level,
		                        metrics, monthly_revenue, monthly_rent, rent_ratio, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   category = EXCLUDED.category,
		   floor = EXCLUDED.floor,
		   health_score = EXCLUDED.health_score,
		   risk_level = EXCLUDED.risk_level,
		   metrics = EXCLUDED.metrics,
		   monthly_revenue = EXCLUDED.monthly_revenue,
		   monthly_rent = EXCLUDED.monthly_rent,
		   rent_ratio = EXCLUDED.rent_ratio,
		   updated_at = now()`,
		m.ID, m.Name, m.Category, m.Floor, m.HealthScore, string(m.RiskLevel),
		string(metrics), m.MonthlyRevenue, m.MonthlyRent, m.RentRatio)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert merchant")
	}
	s.notify()
	return nil
}

// Subscribe registers a change hook.
func (s *PostgresStore) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *PostgresStore) notify() {
	s.mu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
