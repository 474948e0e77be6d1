package enrich

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/pkg/hubspot"
)

// DefaultConcurrency bounds association lookups in flight at once.
const DefaultConcurrency = 5

// lineItemBatchSize is the batch read endpoint's input cap.
const lineItemBatchSize = 100

// Association types requested on deal reads. The v3 API echoes line items
// back under "line items" on some portals.
const (
	assocCompanies      = "companies"
	assocLineItems      = "line_items"
	assocLineItemsSpace = "line items"
)

// Source is the subset of the HubSpot client used for association lookups.
type Source interface {
	GetDeal(ctx context.Context, dealID string, associations []string) (*hubspot.Deal, error)
	GetCompany(ctx context.Context, companyID string, properties []string) (*hubspot.Company, error)
	BatchReadLineItems(ctx context.Context, ids []string, properties []string) ([]hubspot.LineItem, error)
}

// ResolveCompanies returns copies of deals carrying the name of each deal's
// first associated company. Lookups run independently; a failed lookup
// leaves that deal's name nil and never affects the others.
func ResolveCompanies(ctx context.Context, src Source, deals []model.EnrichedDeal, concurrency int) []model.EnrichedDeal {
	out := make([]model.EnrichedDeal, len(deals))
	copy(out, deals)

	var g errgroup.Group
	g.SetLimit(limit(concurrency))

	for i := range out {
		g.Go(func() error {
			name, err := companyName(ctx, src, out[i].ID)
			if err != nil {
				zap.L().Warn("enrich: company lookup failed",
					zap.String("deal_id", out[i].ID),
					zap.Error(err),
				)
				return nil
			}
			out[i] = out[i].WithCompanyName(name)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func companyName(ctx context.Context, src Source, dealID string) (*string, error) {
	deal, err := src.GetDeal(ctx, dealID, []string{assocCompanies})
	if err != nil {
		return nil, err
	}
	ids := deal.AssociatedIDs(assocCompanies)
	if len(ids) == 0 {
		return nil, nil
	}

	co, err := src.GetCompany(ctx, ids[0], []string{"name"})
	if err != nil {
		return nil, err
	}
	name := co.Name()
	if name == "" {
		return nil, nil
	}
	return &name, nil
}

// AttachLineItems returns copies of deals holding their line items, with
// M2Total and PrecioPromedioM2 recomputed from the item areas when their
// sum is positive. Per-deal association failures and failed batch reads
// leave the affected deals unchanged.
func AttachLineItems(ctx context.Context, src Source, deals []model.EnrichedDeal, concurrency int) []model.EnrichedDeal {
	out := make([]model.EnrichedDeal, len(deals))
	copy(out, deals)

	itemIDs := make([][]string, len(out))

	var g errgroup.Group
	g.SetLimit(limit(concurrency))
	for i := range out {
		g.Go(func() error {
			deal, err := src.GetDeal(ctx, out[i].ID, []string{assocLineItems})
			if err != nil {
				zap.L().Warn("enrich: line item association lookup failed",
					zap.String("deal_id", out[i].ID),
					zap.Error(err),
				)
				return nil
			}
			ids := deal.AssociatedIDs(assocLineItems)
			if len(ids) == 0 {
				ids = deal.AssociatedIDs(assocLineItemsSpace)
			}
			itemIDs[i] = ids
			return nil
		})
	}
	_ = g.Wait()

	var all []string
	for _, ids := range itemIDs {
		all = append(all, ids...)
	}
	if len(all) == 0 {
		return out
	}

	items := readLineItems(ctx, src, all)
	for i, ids := range itemIDs {
		if len(ids) == 0 {
			continue
		}
		lis := make([]model.LineItem, 0, len(ids))
		for _, id := range ids {
			if li, ok := items[id]; ok {
				lis = append(lis, li)
			}
		}
		if len(lis) > 0 {
			out[i] = out[i].WithLineItems(lis)
		}
	}
	return out
}

// readLineItems batch-reads ids in chunks, sequentially. A failed chunk is
// logged and its items are simply missing from the result.
func readLineItems(ctx context.Context, src Source, ids []string) map[string]model.LineItem {
	items := make(map[string]model.LineItem, len(ids))
	for start := 0; start < len(ids); start += lineItemBatchSize {
		end := min(start+lineItemBatchSize, len(ids))
		batch, err := src.BatchReadLineItems(ctx, ids[start:end], model.LineItemProperties)
		if err != nil {
			zap.L().Warn("enrich: line item batch read failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", end-start),
				zap.Error(err),
			)
			continue
		}
		for _, li := range batch {
			items[li.ID] = model.NewLineItem(li.ID, li.Properties)
		}
	}
	return items
}

func limit(concurrency int) int {
	if concurrency <= 0 {
		return DefaultConcurrency
	}
	return concurrency
}
