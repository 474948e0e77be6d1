package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-reports/internal/model"
)

func testZones() []model.ZoneMarketPrice {
	return []model.ZoneMarketPrice{
		{Zone: "Valparaíso", MinPrecioM2: 90, MaxPrecioM2: 110, PromedioM2: 100},
		{Zone: DefaultZone, MinPrecioM2: 180, MaxPrecioM2: 220, PromedioM2: 200},
	}
}

func deal(id, zona string, precio float64) model.EnrichedDeal {
	return model.EnrichedDeal{RawDeal: model.RawDeal{ID: id}, Name: "deal " + id, Zona: zona, PrecioPromedioM2: precio}
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(testZones())

	tests := []struct {
		name   string
		deal   model.EnrichedDeal
		status model.PriceStatus
		diff   float64
		zone   string
	}{
		{"within", deal("1", "valparaiso", 105), model.PriceWithinRange, 5, "Valparaíso"},
		{"above", deal("2", "VALPARAÍSO ", 130), model.PriceAboveMarket, 30, "Valparaíso"},
		{"below", deal("3", "Valparaiso", 80), model.PriceBelowMarket, -20, "Valparaíso"},
		{"edge max is within", deal("4", "valparaiso", 110), model.PriceWithinRange, 10, "Valparaíso"},
		{"default fallback", deal("5", "Punta Arenas", 150), model.PriceBelowMarket, -25, DefaultZone},
		{"empty zone", deal("6", "", 200), model.PriceWithinRange, 0, DefaultZone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa, ok := a.Analyze(tt.deal)
			require.True(t, ok)
			assert.Equal(t, tt.status, pa.Status)
			assert.InDelta(t, tt.diff, pa.DiffPercent, 0.001)
			assert.Equal(t, tt.zone, pa.Zone)
			assert.Equal(t, tt.deal.ID, pa.DealID)
		})
	}
}

func TestAnalyze_Ineligible(t *testing.T) {
	a := NewAnalyzer(testZones())
	_, ok := a.Analyze(deal("1", "valparaiso", 0))
	assert.False(t, ok, "zero price is excluded, not below market")

	noDefault := NewAnalyzer([]model.ZoneMarketPrice{{Zone: "sur", MinPrecioM2: 1, MaxPrecioM2: 2, PromedioM2: 1.5}})
	_, ok = noDefault.Analyze(deal("2", "norte", 10))
	assert.False(t, ok)
}

func TestReport(t *testing.T) {
	a := NewAnalyzer(testZones())
	r := a.Report([]model.EnrichedDeal{
		deal("1", "valparaiso", 105), // +5
		deal("2", "valparaiso", 130), // +30
		deal("3", "valparaiso", 80),  // -20
		deal("4", "", 170),           // -15
		deal("5", "", 0),
	})

	require.Len(t, r.Analyses, 4)
	s := r.Stats
	assert.Equal(t, 4, s.Analyzed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.WithinRange)
	assert.Equal(t, 1, s.AboveMarket)
	assert.Equal(t, 2, s.BelowMarket)
	assert.InDelta(t, -20, s.MinDiff, 0.001)
	assert.InDelta(t, 30, s.MaxDiff, 0.001)
	assert.InDelta(t, 0, s.AvgDiff, 0.001)
	assert.InDelta(t, -5, s.MedianDiff, 0.001)

	require.Len(t, s.Distribution, 6)
	counts := make(map[string]int)
	for _, b := range s.Distribution {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{
		"< -20%":      0,
		"-20% a -10%": 2,
		"-10% a 0%":   0,
		"0% a 10%":    1,
		"10% a 20%":   0,
		">= 20%":      1,
	}, counts)
}

func TestPortfolio_Empty(t *testing.T) {
	s := Portfolio(nil, 3)
	assert.Zero(t, s.Analyzed)
	assert.Equal(t, 3, s.Skipped)
	assert.Len(t, s.Distribution, 6)
	assert.Nil(t, s.Distribution[0].From)
	assert.Nil(t, s.Distribution[5].To)
}

func TestPortfolio_OddMedian(t *testing.T) {
	s := Portfolio([]model.DealPriceAnalysis{
		{DiffPercent: 12}, {DiffPercent: -3}, {DiffPercent: 4},
	}, 0)
	assert.InDelta(t, 4, s.MedianDiff, 0.001)
	assert.InDelta(t, 4.33, s.AvgDiff, 0.001)
}

func TestLoadZones(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
zones:
  - zone: santiago
    min_precio_m2: 50000
    max_precio_m2: 80000
    promedio_m2: 65000
  - zone: default
    min_precio_m2: 40000
    max_precio_m2: 70000
    promedio_m2: 55000
`), 0o644))

	zones, err := LoadZones(path)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, 65000.0, zones[0].PromedioM2)

	bench, ok := NewAnalyzer(zones).Benchmark("Santiago")
	require.True(t, ok)
	assert.Equal(t, "santiago", bench.Zone)
}

func TestLoadZones_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadZones(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	unnamed := filepath.Join(dir, "unnamed.yaml")
	require.NoError(t, os.WriteFile(unnamed, []byte("zones:\n  - min_precio_m2: 1\n"), 0o644))
	_, err = LoadZones(unnamed)
	assert.ErrorContains(t, err, "without a name")

	inverted := filepath.Join(dir, "inverted.yaml")
	require.NoError(t, os.WriteFile(inverted, []byte("zones:\n  - zone: x\n    min_precio_m2: 10\n    max_precio_m2: 5\n"), 0o644))
	_, err = LoadZones(inverted)
	assert.ErrorContains(t, err, "min above max")
}

func TestDefaultZones(t *testing.T) {
	a := NewAnalyzer(DefaultZones)
	for _, z := range DefaultZones {
		assert.LessOrEqual(t, z.MinPrecioM2, z.PromedioM2, z.Zone)
		assert.LessOrEqual(t, z.PromedioM2, z.MaxPrecioM2, z.Zone)
	}
	_, ok := a.Benchmark("Concepción")
	assert.True(t, ok)
}
