// Package pricing compares deal prices per m² against zone benchmarks.
package pricing

import (
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pipeline-reports/internal/model"
)

// DefaultZone is the benchmark used when a deal's zone has none.
const DefaultZone = "default"

// DefaultZones is the compiled-in benchmark table, in CLP per m².
var DefaultZones = []model.ZoneMarketPrice{
	{Zone: "santiago", MinPrecioM2: 52000, MaxPrecioM2: 78000, PromedioM2: 65000},
	{Zone: "valparaiso", MinPrecioM2: 48000, MaxPrecioM2: 72000, PromedioM2: 60000},
	{Zone: "concepcion", MinPrecioM2: 46000, MaxPrecioM2: 70000, PromedioM2: 58000},
	{Zone: "norte", MinPrecioM2: 55000, MaxPrecioM2: 85000, PromedioM2: 70000},
	{Zone: "sur", MinPrecioM2: 44000, MaxPrecioM2: 66000, PromedioM2: 55000},
	{Zone: DefaultZone, MinPrecioM2: 48000, MaxPrecioM2: 74000, PromedioM2: 61000},
}

// Analyzer classifies prices against a zone table.
type Analyzer struct {
	zones map[string]model.ZoneMarketPrice
}

// NewAnalyzer indexes zones by normalized name. Later entries win.
func NewAnalyzer(zones []model.ZoneMarketPrice) *Analyzer {
	a := &Analyzer{zones: make(map[string]model.ZoneMarketPrice, len(zones))}
	for _, z := range zones {
		a.zones[normalizeZone(z.Zone)] = z
	}
	return a
}

// Benchmark returns the benchmark for zone, falling back to DefaultZone.
func (a *Analyzer) Benchmark(zone string) (model.ZoneMarketPrice, bool) {
	if z, ok := a.zones[normalizeZone(zone)]; ok {
		return z, true
	}
	z, ok := a.zones[DefaultZone]
	return z, ok
}

// Analyze classifies one deal. Deals without a positive price per m², or
// with no applicable benchmark, are not eligible and return false.
func (a *Analyzer) Analyze(d model.EnrichedDeal) (model.DealPriceAnalysis, bool) {
	if d.PrecioPromedioM2 <= 0 {
		return model.DealPriceAnalysis{}, false
	}
	bench, ok := a.Benchmark(d.Zona)
	if !ok || bench.PromedioM2 <= 0 {
		return model.DealPriceAnalysis{}, false
	}

	status := model.PriceWithinRange
	switch {
	case d.PrecioPromedioM2 > bench.MaxPrecioM2:
		status = model.PriceAboveMarket
	case d.PrecioPromedioM2 < bench.MinPrecioM2:
		status = model.PriceBelowMarket
	}

	return model.DealPriceAnalysis{
		DealID:      d.ID,
		DealName:    d.Name,
		Zone:        bench.Zone,
		PrecioM2:    d.PrecioPromedioM2,
		Benchmark:   bench,
		Status:      status,
		DiffPercent: round2((d.PrecioPromedioM2 - bench.PromedioM2) / bench.PromedioM2 * 100),
	}, true
}

// Report analyzes every eligible deal and summarises the portfolio.
func (a *Analyzer) Report(deals []model.EnrichedDeal) model.PriceReport {
	r := model.PriceReport{Analyses: []model.DealPriceAnalysis{}}
	for _, d := range deals {
		if pa, ok := a.Analyze(d); ok {
			r.Analyses = append(r.Analyses, pa)
		}
	}
	r.Stats = Portfolio(r.Analyses, len(deals)-len(r.Analyses))
	return r
}

// Portfolio aggregates status counts and the percent-difference distribution.
func Portfolio(analyses []model.DealPriceAnalysis, skipped int) model.PortfolioPriceStats {
	s := model.PortfolioPriceStats{
		Analyzed:     len(analyses),
		Skipped:      skipped,
		Distribution: newBuckets(),
	}
	if len(analyses) == 0 {
		return s
	}

	diffs := make([]float64, 0, len(analyses))
	sum := 0.0
	for _, pa := range analyses {
		switch pa.Status {
		case model.PriceAboveMarket:
			s.AboveMarket++
		case model.PriceBelowMarket:
			s.BelowMarket++
		default:
			s.WithinRange++
		}
		diffs = append(diffs, pa.DiffPercent)
		sum += pa.DiffPercent

		for i := range s.Distribution {
			if s.Distribution[i].Contains(pa.DiffPercent) {
				s.Distribution[i].Count++
				break
			}
		}
	}

	sort.Float64s(diffs)
	s.MinDiff = diffs[0]
	s.MaxDiff = diffs[len(diffs)-1]
	s.AvgDiff = round2(sum / float64(len(diffs)))
	if n := len(diffs); n%2 == 1 {
		s.MedianDiff = diffs[n/2]
	} else {
		s.MedianDiff = round2((diffs[n/2-1] + diffs[n/2]) / 2)
	}
	return s
}

// bucketEdges are the percent-difference histogram boundaries.
var bucketEdges = []float64{-20, -10, 0, 10, 20}

func newBuckets() []model.DiffBucket {
	buckets := make([]model.DiffBucket, 0, len(bucketEdges)+1)
	var prev *float64
	for _, edge := range bucketEdges {
		to := &edge
		buckets = append(buckets, model.DiffBucket{Label: bucketLabel(prev, to), From: prev, To: to})
		prev = to
	}
	return append(buckets, model.DiffBucket{Label: bucketLabel(prev, nil), From: prev})
}

func bucketLabel(from, to *float64) string {
	switch {
	case from == nil:
		return "< " + formatPct(*to)
	case to == nil:
		return ">= " + formatPct(*from)
	default:
		return formatPct(*from) + " a " + formatPct(*to)
	}
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// LoadZones reads a benchmark table from a YAML file with a top-level
// "zones" list.
func LoadZones(path string) ([]model.ZoneMarketPrice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: read zones %s", path)
	}

	var wrapper struct {
		Zones []model.ZoneMarketPrice `yaml:"zones"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "pricing: parse zones")
	}
	for _, z := range wrapper.Zones {
		if z.Zone == "" {
			return nil, eris.New("pricing: zone entry without a name")
		}
		if z.MinPrecioM2 > z.MaxPrecioM2 {
			return nil, eris.Errorf("pricing: zone %s has min above max", z.Zone)
		}
	}
	return wrapper.Zones, nil
}

// normalizeZone folds case and strips accents so "Valparaíso" and
// "valparaiso" share a benchmark.
func normalizeZone(zone string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(zone))
	if err != nil {
		stripped = zone
	}
	return cases.Fold().String(stripped)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
