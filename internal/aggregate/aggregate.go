// Package aggregate reduces enriched deal collections into report views.
// Every function is pure: the same stages, deals and instant always yield
// the same result.
package aggregate

import (
	"math"
	"sort"

	"github.com/sells-group/pipeline-reports/internal/classify"
	"github.com/sells-group/pipeline-reports/internal/model"
)

// DefaultTopClients is the length of the top-clients ranking.
const DefaultTopClients = 10

// NoClient labels deals with neither a company nor a contact name.
const NoClient = "Sin cliente"

// Aggregator classifies deals by stage label with a fixed vocabulary.
type Aggregator struct {
	classifier *classify.Classifier
}

// New returns an Aggregator using c. A nil classifier uses the default
// vocabulary.
func New(c *classify.Classifier) *Aggregator {
	if c == nil {
		c = classify.Default()
	}
	return &Aggregator{classifier: c}
}

func (a *Aggregator) classify(d model.EnrichedDeal) classify.Result {
	return a.classifier.Classify(d.StageLabel)
}

// KPIs counts open deals (neither won nor lost) and won deals. AvgTicket is
// the mean won amount, 0 when nothing was won.
func (a *Aggregator) KPIs(deals []model.EnrichedDeal) model.KPISummary {
	var k model.KPISummary
	for _, d := range deals {
		r := a.classify(d)
		switch {
		case r.Won:
			k.WonDeals++
			k.WonAmount += d.Amount
		case !r.Lost:
			k.OpenDeals++
			k.OpenAmount += d.Amount
		}
	}
	if k.WonDeals > 0 {
		k.AvgTicket = k.WonAmount / float64(k.WonDeals)
	}
	return k
}

// FullPipeline partitions deals into won, lost and open and breaks them down
// over every stage in stageList, including stages with no deals. Deals in
// stages missing from stageList count toward the partition only.
func (a *Aggregator) FullPipeline(stageList []model.Stage, deals []model.EnrichedDeal) model.FullPipelineMetrics {
	m := model.FullPipelineMetrics{
		TotalDeals: len(deals),
		WonDeals:   []model.EnrichedDeal{},
		LostDeals:  []model.EnrichedDeal{},
		OpenDeals:  []model.EnrichedDeal{},
	}

	for _, d := range deals {
		switch a.classify(d).Outcome() {
		case model.OutcomeWon:
			m.WonDeals = append(m.WonDeals, d)
			m.WonAmount += d.Amount
			m.WonM2 += d.M2Total
		case model.OutcomeLost:
			m.LostDeals = append(m.LostDeals, d)
			m.LostAmount += d.Amount
			m.LostM2 += d.M2Total
		default:
			m.OpenDeals = append(m.OpenDeals, d)
			m.TotalPipelineAmount += d.Amount
			m.OpenM2 += d.M2Total
		}
	}

	if closed := len(m.WonDeals) + len(m.LostDeals); closed > 0 {
		m.WinRate = float64(len(m.WonDeals)) / float64(closed) * 100
	}

	m.ByStage = a.byStage(stageList, deals)
	return m
}

func (a *Aggregator) byStage(stageList []model.Stage, deals []model.EnrichedDeal) []model.StageMetric {
	sorted := make([]model.Stage, len(stageList))
	copy(sorted, stageList)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})

	index := make(map[string]int, len(sorted))
	metrics := make([]model.StageMetric, len(sorted))
	for i, s := range sorted {
		index[s.ID] = i
		metrics[i] = model.StageMetric{
			StageID:      s.ID,
			Label:        s.Label,
			DisplayOrder: s.DisplayOrder,
			Outcome:      a.classifier.Classify(s.Label).Outcome(),
		}
	}

	for _, d := range deals {
		i, ok := index[d.StageID]
		if !ok {
			continue
		}
		metrics[i].Deals++
		metrics[i].Amount += d.Amount
		metrics[i].M2 += d.M2Total
	}
	return metrics
}

// Distribution converts won/lost/open counts to integer percentages, each
// rounded on its own. The three need not sum to exactly 100.
func (a *Aggregator) Distribution(deals []model.EnrichedDeal) model.StageDistribution {
	dist := model.StageDistribution{Total: len(deals)}
	for _, d := range deals {
		switch a.classify(d).Outcome() {
		case model.OutcomeWon:
			dist.Won++
		case model.OutcomeLost:
			dist.Lost++
		default:
			dist.Open++
		}
	}

	divisor := float64(dist.Total)
	if divisor == 0 {
		divisor = 1
	}
	pct := func(n int) int {
		return int(math.Round(float64(n) / divisor * 100))
	}
	dist.WonPct = pct(dist.Won)
	dist.LostPct = pct(dist.Lost)
	dist.OpenPct = pct(dist.Open)
	return dist
}

// TopClients ranks clients by summed amount, highest first, keeping at most
// n entries (DefaultTopClients when n <= 0). Clients are keyed by company,
// then contact name, then NoClient. Ties keep first-seen order.
func (a *Aggregator) TopClients(deals []model.EnrichedDeal, n int) []model.ClientRanking {
	if n <= 0 {
		n = DefaultTopClients
	}

	index := make(map[string]int)
	ranking := []model.ClientRanking{}
	for _, d := range deals {
		name := clientKey(d)
		i, ok := index[name]
		if !ok {
			i = len(ranking)
			index[name] = i
			ranking = append(ranking, model.ClientRanking{Name: name})
		}
		ranking[i].Deals++
		ranking[i].Amount += d.Amount
		ranking[i].M2 += d.M2Total
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Amount > ranking[j].Amount
	})
	if len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking
}

func clientKey(d model.EnrichedDeal) string {
	switch {
	case d.ClienteEmpresa != "":
		return d.ClienteEmpresa
	case d.ClienteNombre != "":
		return d.ClienteNombre
	default:
		return NoClient
	}
}
