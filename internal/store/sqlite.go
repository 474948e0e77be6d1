package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pipeline-reports/internal/model"
)

// SQLiteStore implements PlanStore using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS action_plans (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	deal_id    TEXT NOT NULL,
	summary    TEXT NOT NULL,
	steps      TEXT NOT NULL DEFAULT '[]',
	model      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	UNIQUE (tenant_id, deal_id)
);

CREATE INDEX IF NOT EXISTS idx_action_plans_expires_at ON action_plans(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPlan(ctx context.Context, plan *model.ActionPlan) error {
	if plan == nil {
		return eris.New("sqlite: upsert plan: nil plan")
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = s.now().UTC()
	}

	steps, err := json.Marshal(nonNil(plan.Steps))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO action_plans (id, tenant_id, deal_id, summary, steps, model, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, deal_id) DO UPDATE SET
			summary = excluded.summary,
			steps = excluded.steps,
			model = excluded.model,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		RETURNING id`,
		plan.ID, plan.TenantID, plan.DealID, plan.Summary, string(steps), plan.Model,
		plan.CreatedAt.UTC(), plan.ExpiresAt.UTC(),
	).Scan(&id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert plan %s/%s", plan.TenantID, plan.DealID)
	}
	plan.ID = id
	return nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, tenantID, dealID string) (*model.ActionPlan, error) {
	var p model.ActionPlan
	var steps string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, deal_id, summary, steps, model, created_at, expires_at
		FROM action_plans WHERE tenant_id = ? AND deal_id = ?`,
		tenantID, dealID,
	).Scan(&p.ID, &p.TenantID, &p.DealID, &p.Summary, &steps, &p.Model, &p.CreatedAt, &p.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get plan %s/%s", tenantID, dealID)
	}
	// Expiry is compared in Go; SQLite stores timestamps as text.
	if p.Expired(s.now()) {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(steps), &p.Steps); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal steps")
	}
	return &p, nil
}
