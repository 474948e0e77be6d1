// Package fetch pages through the HubSpot deal search until the result set
// is exhausted or a page ceiling is hit.
package fetch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/pkg/hubspot"
)

const (
	// DefaultPageSize is the largest page the search endpoint serves.
	DefaultPageSize = hubspot.MaxSearchLimit
	// DefaultMaxPages bounds a single fetch at 5000 deals.
	DefaultMaxPages = 50
)

// isoLayout is the timestamp format HubSpot compares createdate filters with.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Searcher is the subset of the HubSpot client needed to page deals.
type Searcher interface {
	SearchDeals(ctx context.Context, req hubspot.SearchRequest) (*hubspot.SearchResponse, error)
}

// Query selects deals. Empty StageIDs, DealIDs and zero From/To mean no
// constraint.
type Query struct {
	PipelineID string
	StageIDs   []string
	DealIDs    []string
	From       time.Time
	To         time.Time
	Properties []string
}

// Options tunes paging. Zero values take the defaults.
type Options struct {
	PageSize int
	MaxPages int
	// Pause is slept between page requests, never before the first one.
	Pause time.Duration
	// Sleep replaces the context-aware sleep, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result is the accumulated deal set.
type Result struct {
	Deals []model.RawDeal
	Pages int
	// Truncated is set when the page ceiling stopped the loop while the
	// source still had more pages.
	Truncated bool
}

// FetchAll returns every deal matching q, in cursor order. It stops after
// opts.MaxPages reads even if a cursor remains. Errors are returned as-is
// (wrapped) with no retry.
func FetchAll(ctx context.Context, s Searcher, q Query, opts Options) (*Result, error) {
	if opts.PageSize <= 0 || opts.PageSize > hubspot.MaxSearchLimit {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}

	props := q.Properties
	if len(props) == 0 {
		props = model.DealProperties
	}

	req := hubspot.SearchRequest{
		FilterGroups: []hubspot.FilterGroup{{Filters: buildFilters(q)}},
		Sorts:        []hubspot.Sort{{PropertyName: model.PropCreateDate, Direction: hubspot.SortDescending}},
		Properties:   props,
		Limit:        opts.PageSize,
	}

	log := zap.L().With(
		zap.String("component", "fetch"),
		zap.String("pipeline", q.PipelineID),
	)

	res := &Result{}
	for {
		if res.Pages > 0 && opts.Pause > 0 {
			if err := opts.Sleep(ctx, opts.Pause); err != nil {
				return nil, eris.Wrap(err, "fetch: pause between pages")
			}
		}

		resp, err := s.SearchDeals(ctx, req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: page %d", res.Pages+1)
		}
		res.Pages++

		for _, d := range resp.Results {
			res.Deals = append(res.Deals, toRawDeal(d))
		}

		cursor := resp.NextCursor()
		if cursor == "" {
			break
		}
		if res.Pages >= opts.MaxPages {
			res.Truncated = true
			log.Warn("fetch: page ceiling reached, result is partial",
				zap.Int("pages", res.Pages),
				zap.Int("deals", len(res.Deals)),
			)
			break
		}
		req.After = cursor
	}

	log.Debug("fetch: complete",
		zap.Int("pages", res.Pages),
		zap.Int("deals", len(res.Deals)),
	)
	return res, nil
}

func buildFilters(q Query) []hubspot.Filter {
	var filters []hubspot.Filter
	if q.PipelineID != "" {
		filters = append(filters, hubspot.Filter{
			PropertyName: model.PropPipeline, Operator: hubspot.OpEQ, Value: q.PipelineID,
		})
	}
	if len(q.StageIDs) > 0 {
		filters = append(filters, hubspot.Filter{
			PropertyName: model.PropDealStage, Operator: hubspot.OpIN, Values: q.StageIDs,
		})
	}
	if len(q.DealIDs) > 0 {
		filters = append(filters, hubspot.Filter{
			PropertyName: model.PropObjectID, Operator: hubspot.OpIN, Values: q.DealIDs,
		})
	}
	if !q.From.IsZero() {
		filters = append(filters, hubspot.Filter{
			PropertyName: model.PropCreateDate, Operator: hubspot.OpGTE, Value: FormatTime(q.From),
		})
	}
	if !q.To.IsZero() {
		filters = append(filters, hubspot.Filter{
			PropertyName: model.PropCreateDate, Operator: hubspot.OpLTE, Value: FormatTime(q.To),
		})
	}
	return filters
}

// FormatTime renders t the way createdate filters expect.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func toRawDeal(d hubspot.Deal) model.RawDeal {
	props := make(map[string]string, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}

	created := d.CreatedAt
	if created.IsZero() {
		created = model.ParseTime(props[model.PropCreateDate])
	}

	return model.RawDeal{
		ID:         d.ID,
		Properties: props,
		CreatedAt:  created,
		UpdatedAt:  d.UpdatedAt,
		Archived:   d.Archived,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
