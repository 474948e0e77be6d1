package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pipeline-reports/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements PlanStore using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	upsertPlanSQL = `INSERT INTO action_plans (id, tenant_id, deal_id, summary, steps, model, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tenant_id, deal_id) DO UPDATE SET
	summary = EXCLUDED.summary,
	steps = EXCLUDED.steps,
	model = EXCLUDED.model,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at
RETURNING id`
	getPlanSQL = `SELECT id, tenant_id, deal_id, summary, steps, model, created_at, expires_at
FROM action_plans WHERE tenant_id = $1 AND deal_id = $2 AND expires_at > $3`
)

// preparedStatements are prepared on each new pool connection.
var preparedStatements = map[string]string{
	"upsert_plan": upsertPlanSQL,
	"get_plan":    getPlanSQL,
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
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS action_plans (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	deal_id    TEXT NOT NULL,
	summary    TEXT NOT NULL,
	steps      JSONB NOT NULL DEFAULT '[]',
	model      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, deal_id)
);

CREATE INDEX IF NOT EXISTS idx_action_plans_expires_at ON action_plans(expires_at);
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

func (s *PostgresStore) UpsertPlan(ctx context.Context, plan *model.ActionPlan) error {
	if plan == nil {
		return eris.New("postgres: upsert plan: nil plan")
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = s.clock().UTC()
	}

	steps, err := json.Marshal(nonNil(plan.Steps))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal steps")
	}

	var id string
	err = s.pool.QueryRow(ctx, upsertPlanSQL,
		plan.ID, plan.TenantID, plan.DealID, plan.Summary, steps, plan.Model, plan.CreatedAt, plan.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert plan %s/%s", plan.TenantID, plan.DealID)
	}
	// On conflict the existing row keeps its id.
	plan.ID = id
	return nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, tenantID, dealID string) (*model.ActionPlan, error) {
	var p model.ActionPlan
	var steps []byte
	err := s.pool.QueryRow(ctx, getPlanSQL, tenantID, dealID, s.clock().UTC()).Scan(
		&p.ID, &p.TenantID, &p.DealID, &p.Summary, &steps, &p.Model, &p.CreatedAt, &p.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get plan %s/%s", tenantID, dealID)
	}
	if err := json.Unmarshal(steps, &p.Steps); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal steps")
	}
	return &p, nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func nonNil(steps []string) []string {
	if steps == nil {
		return []string{}
	}
	return steps
}
