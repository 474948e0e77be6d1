// Package stages loads a pipeline's stage list and answers label and
// category lookups against that snapshot.
package stages

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pipeline-reports/internal/classify"
	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/pkg/hubspot"
)

// Source is the subset of the HubSpot client needed to load stages.
type Source interface {
	GetPipelineStages(ctx context.Context, pipelineID string) ([]hubspot.Stage, error)
}

// Directory is an immutable snapshot of one pipeline's stages. Every deal
// enriched against a Directory gets its label from the same snapshot.
type Directory struct {
	stages  []model.Stage
	labels  map[string]string
	results map[string]classify.Result
}

// Load fetches the stages of pipelineID and classifies each label with c.
// A nil classifier uses the default vocabulary.
func Load(ctx context.Context, src Source, pipelineID string, c *classify.Classifier) (*Directory, error) {
	raw, err := src.GetPipelineStages(ctx, pipelineID)
	if err != nil {
		return nil, eris.Wrapf(err, "stages: load pipeline %s", pipelineID)
	}

	list := make([]model.Stage, 0, len(raw))
	for _, s := range raw {
		list = append(list, model.Stage{ID: s.ID, Label: s.Label, DisplayOrder: s.DisplayOrder})
	}
	return NewDirectory(list, c), nil
}

// NewDirectory builds a Directory from an existing stage list.
func NewDirectory(list []model.Stage, c *classify.Classifier) *Directory {
	if c == nil {
		c = classify.Default()
	}

	sorted := make([]model.Stage, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})

	d := &Directory{
		stages:  sorted,
		labels:  make(map[string]string, len(sorted)),
		results: make(map[string]classify.Result, len(sorted)),
	}
	for _, s := range sorted {
		d.labels[s.ID] = s.Label
		d.results[s.ID] = c.Classify(s.Label)
	}
	return d
}

// Stages returns a copy of the stage list sorted by DisplayOrder.
func (d *Directory) Stages() []model.Stage {
	out := make([]model.Stage, len(d.stages))
	copy(out, d.stages)
	return out
}

// Label returns the label of stageID, or "" when the id is unknown.
func (d *Directory) Label(stageID string) string {
	return d.labels[stageID]
}

// FollowUpIDs returns the ids of follow-up stages in display order.
func (d *Directory) FollowUpIDs() []string {
	return d.idsWhere(func(r classify.Result) bool { return r.FollowUp })
}

// ConfirmedIDs returns the ids of confirmed-order stages in display order.
func (d *Directory) ConfirmedIDs() []string {
	return d.idsWhere(func(r classify.Result) bool { return r.ConfirmedOrder })
}

func (d *Directory) idsWhere(match func(classify.Result) bool) []string {
	var ids []string
	for _, s := range d.stages {
		if match(d.results[s.ID]) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
