package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-reports/internal/enrich"
	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/internal/stages"
)

// DailyReport builds the composite daily report: KPIs, full pipeline,
// distribution, monthly series, top clients, follow-ups and confirmed
// orders. Pages are read with a fixed pause between them. Results are
// cached per tenant, pipeline and date for the cache TTL; the returned
// value is shared and must not be modified.
func (s *Service) DailyReport(ctx context.Context, req Request) (*model.ReportData, error) {
	key := CacheKey(req.TenantID, req.PipelineID, req.Date)
	if data, ok := s.cache.Get(key); ok {
		zap.L().Debug("report: daily report cache hit", zap.String("key", key))
		return data, nil
	}

	asOf, err := s.asOf(req.Date)
	if err != nil {
		return nil, eris.Wrap(err, "report: daily report")
	}

	lo := loadOpts{asOf: asOf, pageDelay: s.cfg.PageDelay}
	if req.Date != "" {
		lo.to = asOf
	}
	ds, err := s.load(ctx, req, lo)
	if err != nil {
		return nil, s.fail(err, req, "daily report")
	}

	data := &model.ReportData{
		TenantID:     req.TenantID,
		PipelineID:   req.PipelineID,
		Date:         asOf.In(s.cfg.Location).Format(dateLayout),
		GeneratedAt:  s.now(),
		DealCount:    len(ds.deals),
		Truncated:    ds.truncated,
		KPIs:         s.agg.KPIs(ds.deals),
		Pipeline:     s.agg.FullPipeline(ds.dir.Stages(), ds.deals),
		Distribution: s.agg.Distribution(ds.deals),
		Monthly:      s.agg.MonthlySeries(ds.deals, asOf),
		TopClients:   s.agg.TopClients(ds.deals, s.cfg.TopClients),
		Seguimiento:  s.agg.Seguimiento(ds.deals),
		Pedidos:      s.agg.Pedidos(ds.deals),
	}

	s.cache.Set(key, data)
	zap.L().Info("report: daily report built",
		zap.String("tenant", req.TenantID),
		zap.String("pipeline", req.PipelineID),
		zap.Int("deals", data.DealCount),
		zap.Bool("truncated", data.Truncated),
	)
	return data, nil
}

// PipelineReport partitions every deal of the pipeline into won, lost and
// open with a per-stage breakdown. It is not cached.
func (s *Service) PipelineReport(ctx context.Context, req Request) (*View[PipelineData], error) {
	ds, err := s.load(ctx, req, loadOpts{})
	if err != nil {
		return nil, s.fail(err, req, "pipeline report")
	}

	list := ds.dir.Stages()
	return newView(req, ds, s.now(), PipelineData{
		Stages:       list,
		KPIs:         s.agg.KPIs(ds.deals),
		Metrics:      s.agg.FullPipeline(list, ds.deals),
		Distribution: s.agg.Distribution(ds.deals),
	}), nil
}

// SeguimientoReport lists deals in follow-up stages, split by urgency, with
// their associated company names resolved best-effort.
func (s *Service) SeguimientoReport(ctx context.Context, req Request) (*View[model.SeguimientoData], error) {
	ds, err := s.load(ctx, req, loadOpts{stageIDs: (*stages.Directory).FollowUpIDs})
	if err != nil {
		return nil, s.fail(err, req, "seguimiento report")
	}

	ds.deals = enrich.ResolveCompanies(ctx, ds.client, ds.deals, s.cfg.CompanyConcurrency)
	return newView(req, ds, s.now(), s.agg.Seguimiento(ds.deals)), nil
}

// PedidosReport summarises deals in confirmed-order stages. Line items are
// attached so areas reflect the ordered items.
func (s *Service) PedidosReport(ctx context.Context, req Request) (*View[model.PedidosData], error) {
	ds, err := s.load(ctx, req, loadOpts{stageIDs: (*stages.Directory).ConfirmedIDs})
	if err != nil {
		return nil, s.fail(err, req, "pedidos report")
	}

	ds.deals = enrich.AttachLineItems(ctx, ds.client, ds.deals, s.cfg.CompanyConcurrency)
	return newView(req, ds, s.now(), s.agg.Pedidos(ds.deals)), nil
}

// ItemsReport lists the line items of deals created between req.From and
// req.To. A zero range covers the current month to date.
func (s *Service) ItemsReport(ctx context.Context, req Request) (*View[model.ItemsReportData], error) {
	from, to := req.From, req.To
	if from.IsZero() && to.IsZero() {
		now := s.now().In(s.cfg.Location)
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.cfg.Location)
		to = now
	}
	if !to.IsZero() && from.After(to) {
		return nil, eris.Wrapf(ErrInvalidRequest, "report: items report: from %s is after to %s",
			from.Format(dateLayout), to.Format(dateLayout))
	}

	ds, err := s.load(ctx, req, loadOpts{from: from, to: to})
	if err != nil {
		return nil, s.fail(err, req, "items report")
	}

	ds.deals = enrich.AttachLineItems(ctx, ds.client, ds.deals, s.cfg.CompanyConcurrency)
	return newView(req, ds, s.now(), s.agg.Items(ds.deals)), nil
}

// PriceReport compares every deal's price per m² against its zone benchmark.
// Lost deals are left out.
func (s *Service) PriceReport(ctx context.Context, req Request) (*View[model.PriceReport], error) {
	ds, err := s.load(ctx, req, loadOpts{})
	if err != nil {
		return nil, s.fail(err, req, "price report")
	}

	var candidates []model.EnrichedDeal
	for _, d := range ds.deals {
		if s.classifier.Classify(d.StageLabel).Outcome() != model.OutcomeLost {
			candidates = append(candidates, d)
		}
	}
	return newView(req, ds, s.now(), s.analyzer.Report(candidates)), nil
}

// ErrDealNotFound is returned by Deal when the pipeline has no deal with the
// requested ID.
var ErrDealNotFound = eris.New("deal not found")

// Deal loads one deal of the pipeline with its company name and line items
// resolved. It backs action-plan generation.
func (s *Service) Deal(ctx context.Context, req Request, dealID string) (*model.EnrichedDeal, error) {
	ds, err := s.load(ctx, req, loadOpts{dealIDs: []string{dealID}})
	if err != nil {
		return nil, s.fail(err, req, "deal")
	}
	if len(ds.deals) == 0 {
		return nil, eris.Wrapf(ErrDealNotFound, "report: deal %s in pipeline %s", dealID, req.PipelineID)
	}

	deals := enrich.ResolveCompanies(ctx, ds.client, ds.deals[:1], 1)
	deals = enrich.AttachLineItems(ctx, ds.client, deals, 1)
	return &deals[0], nil
}
