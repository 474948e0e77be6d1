// Package store persists generated action plans.
package store

import (
	"context"

	"github.com/sells-group/pipeline-reports/internal/model"
)

// PlanStore persists one action plan per tenant and deal.
type PlanStore interface {
	// UpsertPlan inserts plan or replaces the existing plan for the same
	// tenant and deal. A missing ID is assigned.
	UpsertPlan(ctx context.Context, plan *model.ActionPlan) error
	// GetPlan returns the stored plan, or nil when there is none or it has
	// expired.
	GetPlan(ctx context.Context, tenantID, dealID string) (*model.ActionPlan, error)

	Migrate(ctx context.Context) error
	Close() error
}
