package model

import "time"

// PriceStatus classifies a deal's price per m² against its zone benchmark.
type PriceStatus string

const (
	PriceWithinRange PriceStatus = "en_rango"
	PriceAboveMarket PriceStatus = "sobre_mercado"
	PriceBelowMarket PriceStatus = "bajo_mercado"
)

// ZoneMarketPrice is the reference price band for one zone.
type ZoneMarketPrice struct {
	Zone        string  `json:"zone" yaml:"zone"`
	MinPrecioM2 float64 `json:"min_precio_m2" yaml:"min_precio_m2"`
	MaxPrecioM2 float64 `json:"max_precio_m2" yaml:"max_precio_m2"`
	PromedioM2  float64 `json:"promedio_m2" yaml:"promedio_m2"`
}

// DealPriceAnalysis is the price classification of a single deal.
type DealPriceAnalysis struct {
	DealID      string          `json:"deal_id"`
	DealName    string          `json:"deal_name"`
	Zone        string          `json:"zone"`
	PrecioM2    float64         `json:"precio_m2"`
	Benchmark   ZoneMarketPrice `json:"benchmark"`
	Status      PriceStatus     `json:"status"`
	DiffPercent float64         `json:"diff_percent"`
}

// DiffBucket counts analyses whose percent difference falls in [From, To).
// A nil bound is open.
type DiffBucket struct {
	Label string   `json:"label"`
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
	Count int      `json:"count"`
}

// Contains reports whether diff falls inside the bucket.
func (b DiffBucket) Contains(diff float64) bool {
	if b.From != nil && diff < *b.From {
		return false
	}
	if b.To != nil && diff >= *b.To {
		return false
	}
	return true
}

// PortfolioPriceStats summarises the price analysis of a deal set.
type PortfolioPriceStats struct {
	Analyzed     int          `json:"analyzed"`
	Skipped      int          `json:"skipped"`
	WithinRange  int          `json:"within_range"`
	AboveMarket  int          `json:"above_market"`
	BelowMarket  int          `json:"below_market"`
	AvgDiff      float64      `json:"avg_diff"`
	MedianDiff   float64      `json:"median_diff"`
	MinDiff      float64      `json:"min_diff"`
	MaxDiff      float64      `json:"max_diff"`
	Distribution []DiffBucket `json:"distribution"`
}

// PriceReport bundles per-deal analyses with their portfolio statistics.
type PriceReport struct {
	Analyses []DealPriceAnalysis `json:"analyses"`
	Stats    PortfolioPriceStats `json:"stats"`
}

// ActionPlan is a generated follow-up plan for one deal.
type ActionPlan struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	DealID    string    `json:"deal_id"`
	Summary   string    `json:"summary"`
	Steps     []string  `json:"steps"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the plan is past its expiry at now.
func (p ActionPlan) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
