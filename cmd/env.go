package main

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pipeline-reports/internal/classify"
	"github.com/sells-group/pipeline-reports/internal/config"
	"github.com/sells-group/pipeline-reports/internal/plan"
	"github.com/sells-group/pipeline-reports/internal/pricing"
	"github.com/sells-group/pipeline-reports/internal/report"
	"github.com/sells-group/pipeline-reports/internal/store"
	"github.com/sells-group/pipeline-reports/pkg/anthropic"
	"github.com/sells-group/pipeline-reports/pkg/hubspot"
)

// tenantClients builds one HubSpot client per tenant and reuses it, so each
// tenant keeps a single rate limiter.
type tenantClients struct {
	cfg config.HubSpotConfig

	mu      sync.Mutex
	clients map[string]hubspot.Client
}

func newTenantClients(cfg config.HubSpotConfig) *tenantClients {
	return &tenantClients{cfg: cfg, clients: make(map[string]hubspot.Client)}
}

func (t *tenantClients) Client(tenantID string) (hubspot.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[tenantID]; ok {
		return c, nil
	}
	token, ok := t.cfg.TenantToken(tenantID)
	if !ok {
		return nil, eris.Wrapf(report.ErrUnknownTenant, "tenant %s", tenantID)
	}

	opts := []hubspot.Option{}
	if t.cfg.BaseURL != "" {
		opts = append(opts, hubspot.WithBaseURL(t.cfg.BaseURL))
	}
	if t.cfg.TimeoutSecs > 0 {
		opts = append(opts, hubspot.WithTimeout(time.Duration(t.cfg.TimeoutSecs)*time.Second))
	}
	if t.cfg.RateLimit > 0 {
		opts = append(opts, hubspot.WithRateLimit(t.cfg.RateLimit))
	}
	c := hubspot.NewClient(token, opts...)
	t.clients[tenantID] = c
	return c, nil
}

// serviceOptions turns the reports config section into report.Service
// options, loading the vocabulary and zone files when configured.
func serviceOptions(rc config.ReportsConfig) ([]report.Option, error) {
	loc, err := rc.Location()
	if err != nil {
		return nil, err
	}

	opts := []report.Option{report.WithConfig(report.Config{
		PageSize:           rc.PageSize,
		MaxPages:           rc.MaxPages,
		PageDelay:          rc.PageDelay(),
		CompanyConcurrency: rc.CompanyConcurrency,
		TopClients:         rc.TopClients,
		CacheTTL:           rc.CacheTTL(),
		Location:           loc,
	})}

	if rc.VocabularyFile != "" {
		v, err := classify.LoadVocabulary(rc.VocabularyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, report.WithClassifier(classify.New(v)))
	}
	if rc.ZonesFile != "" {
		zones, err := pricing.LoadZones(rc.ZonesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, report.WithAnalyzer(pricing.NewAnalyzer(zones)))
	}
	return opts, nil
}

func initReportService() (*report.Service, error) {
	opts, err := serviceOptions(cfg.Reports)
	if err != nil {
		return nil, err
	}
	return report.NewService(newTenantClients(cfg.HubSpot).Client, opts...), nil
}

func initStore(ctx context.Context) (store.PlanStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pipeline-reports.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPlanGenerator(st store.PlanStore) *plan.Generator {
	return plan.NewGenerator(anthropic.NewClient(cfg.Anthropic.Key), st, plan.Config{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		TTL:       time.Duration(cfg.Anthropic.PlanTTLHours) * time.Hour,
	})
}
