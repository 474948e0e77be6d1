// Package report composes the stage directory, fetcher, enrichment and
// aggregators into the report operations exposed by the CLI and server.
package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-reports/internal/aggregate"
	"github.com/sells-group/pipeline-reports/internal/cache"
	"github.com/sells-group/pipeline-reports/internal/classify"
	"github.com/sells-group/pipeline-reports/internal/enrich"
	"github.com/sells-group/pipeline-reports/internal/fetch"
	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/internal/pricing"
	"github.com/sells-group/pipeline-reports/internal/resilience"
	"github.com/sells-group/pipeline-reports/internal/stages"
	"github.com/sells-group/pipeline-reports/pkg/hubspot"
)

// RateLimitMessage is shown to users when HubSpot throttles the portal.
const RateLimitMessage = "HubSpot está limitando las llamadas a la API. Espera unos 10 segundos e intenta de nuevo."

// ErrRateLimited replaces any upstream throttling error returned by a
// report operation.
var ErrRateLimited = eris.New(RateLimitMessage)

// ErrUnknownTenant is returned by a ClientFactory for tenants with no
// HubSpot credentials.
var ErrUnknownTenant = eris.New("unknown tenant")

// ErrInvalidRequest marks request parameters that cannot be parsed or are
// inconsistent.
var ErrInvalidRequest = eris.New("invalid request")

// DefaultPageDelay paces the daily report's page reads under HubSpot's
// ten-second rolling limit.
const DefaultPageDelay = 1500 * time.Millisecond

// dateLayout is the format of Request.Date.
const dateLayout = "2006-01-02"

// ClientFactory returns the HubSpot client for a tenant.
type ClientFactory func(tenantID string) (hubspot.Client, error)

// Config tunes the report builders. Zero values take package defaults.
type Config struct {
	PageSize           int
	MaxPages           int
	PageDelay          time.Duration
	CompanyConcurrency int
	TopClients         int
	CacheTTL           time.Duration
	Location           *time.Location
}

// Request identifies the data a report is built from.
type Request struct {
	TenantID   string
	PipelineID string
	// Date is an optional "YYYY-MM-DD" day the daily report is built as of.
	Date string
	// From and To bound deal creation for the items report.
	From time.Time
	To   time.Time
}

// View wraps a report payload with the request it was built for.
type View[T any] struct {
	TenantID    string    `json:"tenant_id"`
	PipelineID  string    `json:"pipeline_id"`
	GeneratedAt time.Time `json:"generated_at"`
	DealCount   int       `json:"deal_count"`
	Truncated   bool      `json:"truncated"`
	Data        T         `json:"data"`
}

// PipelineData is the payload of the full-pipeline report.
type PipelineData struct {
	Stages       []model.Stage             `json:"stages"`
	KPIs         model.KPISummary          `json:"kpis"`
	Metrics      model.FullPipelineMetrics `json:"metrics"`
	Distribution model.StageDistribution   `json:"distribution"`
}

// Option configures a Service.
type Option func(*Service)

// WithConfig replaces the builder configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithClassifier sets the stage vocabulary.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) {
		s.classifier = c
	}
}

// WithAnalyzer sets the zone benchmark table used by PriceReport.
func WithAnalyzer(a *pricing.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = a
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSleep replaces the pause between daily report pages, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		s.sleep = sleep
	}
}

// Service builds reports. It is safe for concurrent use; the daily report
// cache is its only shared state.
type Service struct {
	clients    ClientFactory
	cfg        Config
	classifier *classify.Classifier
	agg        *aggregate.Aggregator
	analyzer   *pricing.Analyzer
	cache      *cache.TTL[*model.ReportData]
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewService creates a Service resolving HubSpot clients through clients.
func NewService(clients ClientFactory, opts ...Option) *Service {
	s := &Service{
		clients: clients,
		cfg:     Config{PageDelay: DefaultPageDelay},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if s.classifier == nil {
		s.classifier = classify.Default()
	}
	if s.analyzer == nil {
		s.analyzer = pricing.NewAnalyzer(pricing.DefaultZones)
	}
	if s.cfg.Location == nil {
		s.cfg.Location = time.UTC
	}
	if s.cfg.TopClients <= 0 {
		s.cfg.TopClients = aggregate.DefaultTopClients
	}
	s.agg = aggregate.New(s.classifier)
	s.cache = cache.New[*model.ReportData](s.cfg.CacheTTL, cache.WithClock(s.now))
	return s
}

// CacheStats exposes the daily report cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// CacheKey builds the daily report cache key. An empty date uses the
// literal "today", which does not change at midnight.
func CacheKey(tenantID, pipelineID, date string) string {
	if date == "" {
		date = "today"
	}
	return tenantID + ":" + pipelineID + ":" + date
}

// fail converts err into what the caller sees: ErrRateLimited for any
// throttling signature, otherwise err wrapped with op.
func (s *Service) fail(err error, req Request, op string) error {
	log := zap.L().With(
		zap.String("tenant", req.TenantID),
		zap.String("pipeline", req.PipelineID),
		zap.String("report", op),
	)
	switch resilience.Classify(err) {
	case resilience.CategoryRateLimit:
		log.Warn("report: hubspot rate limit", zap.Error(err))
		return ErrRateLimited
	case resilience.CategoryTransient:
		log.Warn("report: transient upstream failure", zap.Error(err))
	default:
		log.Error("report: build failed", zap.Error(err))
	}
	return eris.Wrapf(err, "report: %s", op)
}

// dataset is the shared first half of every report: the stage snapshot and
// the enriched deals it labelled.
type dataset struct {
	client    hubspot.Client
	dir       *stages.Directory
	deals     []model.EnrichedDeal
	truncated bool
	asOf      time.Time
}

type loadOpts struct {
	stageIDs  func(*stages.Directory) []string
	dealIDs   []string
	from, to  time.Time
	asOf      time.Time
	pageDelay time.Duration
}

func (s *Service) load(ctx context.Context, req Request, lo loadOpts) (*dataset, error) {
	client, err := s.clients(req.TenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve client for tenant %s", req.TenantID)
	}

	dir, err := stages.Load(ctx, client, req.PipelineID, s.classifier)
	if err != nil {
		return nil, err
	}

	asOf := lo.asOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	ds := &dataset{client: client, dir: dir, asOf: asOf}

	q := fetch.Query{PipelineID: req.PipelineID, DealIDs: lo.dealIDs, From: lo.from, To: lo.to}
	if lo.stageIDs != nil {
		q.StageIDs = lo.stageIDs(dir)
		if len(q.StageIDs) == 0 {
			// No stage in this pipeline matches; an unfiltered search
			// would return the whole pipeline.
			return ds, nil
		}
	}

	res, err := fetch.FetchAll(ctx, client, q, fetch.Options{
		PageSize: s.cfg.PageSize,
		MaxPages: s.cfg.MaxPages,
		Pause:    lo.pageDelay,
		Sleep:    s.sleep,
	})
	if err != nil {
		return nil, err
	}

	ds.deals = enrich.EnrichAll(res.Deals, dir, asOf)
	ds.truncated = res.Truncated
	return ds, nil
}

func newView[T any](req Request, ds *dataset, generatedAt time.Time, data T) *View[T] {
	return &View[T]{
		TenantID:    req.TenantID,
		PipelineID:  req.PipelineID,
		GeneratedAt: generatedAt,
		DealCount:   len(ds.deals),
		Truncated:   ds.truncated,
		Data:        data,
	}
}

// asOf resolves Request.Date to the last instant of that day, capped at now.
func (s *Service) asOf(date string) (time.Time, error) {
	now := s.now()
	if date == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(dateLayout, date, s.cfg.Location)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidRequest, "invalid date %q: %v", date, err)
	}
	end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if end.After(now) {
		return now, nil
	}
	return end, nil
}
