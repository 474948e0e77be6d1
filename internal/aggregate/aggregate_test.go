package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-reports/internal/enrich"
	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/internal/stages"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func scenarioStages() []model.Stage {
	return []model.Stage{
		{ID: "s1", Label: "Cierre Ganado", DisplayOrder: 3},
		{ID: "s2", Label: "Cierre Perdido", DisplayOrder: 4},
		{ID: "s3", Label: "Propuesta", DisplayOrder: 1},
	}
}

func rawDeal(id, stage, amount string) model.RawDeal {
	return model.RawDeal{
		ID:         id,
		Properties: map[string]string{"dealstage": stage, "amount": amount},
		CreatedAt:  now.AddDate(0, -1, 0),
	}
}

func scenarioDeals() []model.EnrichedDeal {
	dir := stages.NewDirectory(scenarioStages(), nil)
	return enrich.EnrichAll([]model.RawDeal{
		rawDeal("1", "s1", "1000"),
		rawDeal("2", "s2", "500"),
		rawDeal("3", "s3", "2000"),
	}, dir, now)
}

func TestFullPipeline_Scenario(t *testing.T) {
	m := New(nil).FullPipeline(scenarioStages(), scenarioDeals())

	assert.InDelta(t, 1000, m.WonAmount, 0.001)
	assert.InDelta(t, 500, m.LostAmount, 0.001)
	assert.InDelta(t, 2000, m.TotalPipelineAmount, 0.001)
	assert.InDelta(t, 50, m.WinRate, 0.001)
	assert.Equal(t, 3, m.TotalDeals)

	require.Len(t, m.ByStage, 3)
	assert.Equal(t, "s3", m.ByStage[0].StageID)
	assert.Equal(t, model.OutcomeOpen, m.ByStage[0].Outcome)
	assert.Equal(t, "s1", m.ByStage[1].StageID)
	assert.Equal(t, model.OutcomeWon, m.ByStage[1].Outcome)
	assert.Equal(t, "s2", m.ByStage[2].StageID)
}

func TestFullPipeline_EmptyStagesIncluded(t *testing.T) {
	list := append(scenarioStages(), model.Stage{ID: "s4", Label: "Seguimiento", DisplayOrder: 2})
	m := New(nil).FullPipeline(list, scenarioDeals())

	require.Len(t, m.ByStage, 4)
	assert.Equal(t, "s4", m.ByStage[1].StageID)
	assert.Zero(t, m.ByStage[1].Deals)
	assert.Zero(t, m.ByStage[1].Amount)
}

func TestFullPipeline_PartitionInvariant(t *testing.T) {
	labels := []string{"Cierre Ganado", "Cierre Perdido", "Propuesta", "", "closedwon closedlost", "Seguimiento +14"}
	var deals []model.EnrichedDeal
	for i := range 60 {
		deals = append(deals, model.EnrichedDeal{
			RawDeal:    model.RawDeal{ID: fmt.Sprint(i)},
			StageID:    fmt.Sprintf("x%d", i%7),
			StageLabel: labels[i%len(labels)],
			Amount:     float64(i),
		})
	}

	m := New(nil).FullPipeline(nil, deals)
	assert.Equal(t, len(deals), len(m.WonDeals)+len(m.LostDeals)+len(m.OpenDeals))
	assert.Equal(t, m.TotalDeals, len(m.WonDeals)+len(m.LostDeals)+len(m.OpenDeals))
	assert.Empty(t, m.ByStage)
}

func TestFullPipeline_NoClosedDeals(t *testing.T) {
	m := New(nil).FullPipeline(nil, []model.EnrichedDeal{{StageLabel: "Propuesta", Amount: 10}})
	assert.Zero(t, m.WinRate)
	assert.NotNil(t, m.WonDeals)
	assert.NotNil(t, m.LostDeals)
}

func TestKPIs(t *testing.T) {
	deals := append(scenarioDeals(), model.EnrichedDeal{StageLabel: "closedwon", Amount: 3000})
	k := New(nil).KPIs(deals)

	assert.Equal(t, 1, k.OpenDeals)
	assert.InDelta(t, 2000, k.OpenAmount, 0.001)
	assert.Equal(t, 2, k.WonDeals)
	assert.InDelta(t, 4000, k.WonAmount, 0.001)
	assert.InDelta(t, 2000, k.AvgTicket, 0.001)

	empty := New(nil).KPIs(nil)
	assert.Zero(t, empty.AvgTicket)
}

func TestDistribution(t *testing.T) {
	dist := New(nil).Distribution(scenarioDeals())
	assert.Equal(t, 3, dist.Total)
	assert.Equal(t, 33, dist.WonPct)
	assert.Equal(t, 33, dist.LostPct)
	assert.Equal(t, 33, dist.OpenPct)

	zero := New(nil).Distribution(nil)
	assert.Equal(t, model.StageDistribution{}, zero)
}

func TestDistribution_RoundingNotReconciled(t *testing.T) {
	deals := []model.EnrichedDeal{
		{StageLabel: "Cierre Ganado"},
		{StageLabel: "Cierre Ganado"},
		{StageLabel: "Cierre Perdido"},
		{StageLabel: "Cierre Perdido"},
		{StageLabel: "Cierre Perdido"},
		{StageLabel: "Propuesta"},
		{StageLabel: "Propuesta"},
		{StageLabel: "Propuesta"},
	}
	dist := New(nil).Distribution(deals)
	// 25, 37.5 and 37.5 round independently to 25, 38 and 38.
	assert.Equal(t, 25, dist.WonPct)
	assert.Equal(t, 38, dist.LostPct)
	assert.Equal(t, 38, dist.OpenPct)
	assert.Equal(t, 101, dist.WonPct+dist.LostPct+dist.OpenPct)
}

func TestTopClients_StableTies(t *testing.T) {
	deals := []model.EnrichedDeal{
		{ClienteEmpresa: "A", Amount: 100},
		{ClienteEmpresa: "B", Amount: 100},
		{ClienteEmpresa: "C", Amount: 50},
	}
	got := New(nil).TopClients(deals, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "B", got[1].Name)
	assert.Equal(t, "C", got[2].Name)
}

func TestTopClients_Truncates(t *testing.T) {
	var deals []model.EnrichedDeal
	for i := range 11 {
		deals = append(deals, model.EnrichedDeal{ClienteEmpresa: fmt.Sprintf("c%02d", i), Amount: float64(i)})
	}
	got := New(nil).TopClients(deals, 0)
	require.Len(t, got, 10)
	assert.Equal(t, "c10", got[0].Name)
	assert.Equal(t, "c01", got[9].Name)
}

func TestTopClients_KeyFallback(t *testing.T) {
	deals := []model.EnrichedDeal{
		{ClienteEmpresa: "Andes", ClienteNombre: "Ana", Amount: 10, M2Total: 2},
		{ClienteNombre: "Ana", Amount: 20},
		{Amount: 5},
		{ClienteEmpresa: "Andes", Amount: 30, M2Total: 3},
	}
	got := New(nil).TopClients(deals, 5)
	require.Len(t, got, 3)
	assert.Equal(t, model.ClientRanking{Name: "Andes", Deals: 2, Amount: 40, M2: 5}, got[0])
	assert.Equal(t, "Ana", got[1].Name)
	assert.Equal(t, NoClient, got[2].Name)
}

func TestMonthlySeries_Buckets(t *testing.T) {
	points := New(nil).MonthlySeries(nil, now)
	require.Len(t, points, 12)
	assert.Equal(t, "2025-07", points[0].Month)
	assert.Equal(t, "Jul 2025", points[0].Label)
	assert.Equal(t, "2026-06", points[11].Month)
}

func TestMonthlySeries_Boundary(t *testing.T) {
	start := WindowStart(now)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), start)

	deals := []model.EnrichedDeal{
		{RawDeal: model.RawDeal{ID: "too-old", CreatedAt: now.AddDate(0, -12, -1)}, Amount: 1},
		{RawDeal: model.RawDeal{ID: "just-before", CreatedAt: start.Add(-time.Nanosecond)}, Amount: 2},
		{RawDeal: model.RawDeal{ID: "at-boundary", CreatedAt: start}, Amount: 4},
		{RawDeal: model.RawDeal{ID: "now", CreatedAt: now}, Amount: 8, StageLabel: "Cierre Ganado"},
		{RawDeal: model.RawDeal{ID: "future", CreatedAt: now.Add(time.Minute)}, Amount: 16},
	}

	points := New(nil).MonthlySeries(deals, now)
	total := 0.0
	for _, p := range points {
		total += p.Amount
	}
	assert.InDelta(t, 12, total, 0.001)
	assert.Equal(t, 1, points[0].Deals)
	assert.InDelta(t, 4, points[0].Amount, 0.001)
	assert.Equal(t, 1, points[11].WonDeals)
	assert.InDelta(t, 8, points[11].WonAmount, 0.001)
}

func TestMonthlySeries_TwelveMonthsAgoExcluded(t *testing.T) {
	// The series covers the current month plus the 11 before it, so the same
	// day twelve months back falls one bucket outside the window.
	deals := []model.EnrichedDeal{
		{RawDeal: model.RawDeal{ID: "year-ago", CreatedAt: now.AddDate(0, -12, 0)}, Amount: 100},
		{RawDeal: model.RawDeal{ID: "eleven-months", CreatedAt: now.AddDate(0, -11, 0)}, Amount: 5},
	}
	assert.True(t, now.AddDate(0, -12, 0).Before(WindowStart(now)))

	points := New(nil).MonthlySeries(deals, now)
	total := 0.0
	for _, p := range points {
		total += p.Amount
	}
	assert.InDelta(t, 5, total, 0.001)
	assert.Equal(t, 1, points[0].Deals)
}

func TestMonthlySeries_YearWrap(t *testing.T) {
	jan := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	points := New(nil).MonthlySeries(nil, jan)
	assert.Equal(t, "2025-02", points[0].Month)
	assert.Equal(t, "2026-01", points[11].Month)
}
