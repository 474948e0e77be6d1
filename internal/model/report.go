package model

import "time"

// Outcome is the partition bucket a deal falls into for pipeline metrics.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomeOpen Outcome = "open"
)

// KPISummary is the headline block of the daily report.
type KPISummary struct {
	OpenDeals  int     `json:"open_deals"`
	OpenAmount float64 `json:"open_amount"`
	WonDeals   int     `json:"won_deals"`
	WonAmount  float64 `json:"won_amount"`
	AvgTicket  float64 `json:"avg_ticket"`
}

// StageMetric aggregates the deals sitting in one pipeline stage.
type StageMetric struct {
	StageID      string  `json:"stage_id"`
	Label        string  `json:"label"`
	DisplayOrder int     `json:"display_order"`
	Outcome      Outcome `json:"outcome"`
	Deals        int     `json:"deals"`
	Amount       float64 `json:"amount"`
	M2           float64 `json:"m2"`
}

// FullPipelineMetrics partitions every deal into won, lost and open.
// TotalDeals always equals len(WonDeals)+len(LostDeals)+len(OpenDeals).
type FullPipelineMetrics struct {
	TotalDeals int `json:"total_deals"`

	WonDeals  []EnrichedDeal `json:"won_deals"`
	LostDeals []EnrichedDeal `json:"lost_deals"`
	OpenDeals []EnrichedDeal `json:"open_deals"`

	WonAmount           float64 `json:"won_amount"`
	LostAmount          float64 `json:"lost_amount"`
	TotalPipelineAmount float64 `json:"total_pipeline_amount"`

	WonM2  float64 `json:"won_m2"`
	LostM2 float64 `json:"lost_m2"`
	OpenM2 float64 `json:"open_m2"`

	WinRate float64       `json:"win_rate"`
	ByStage []StageMetric `json:"by_stage"`
}

// MonthlyPoint is one "YYYY-MM" bucket of the monthly series.
type MonthlyPoint struct {
	Month     string  `json:"month"`
	Label     string  `json:"label"`
	Deals     int     `json:"deals"`
	Amount    float64 `json:"amount"`
	M2        float64 `json:"m2"`
	WonDeals  int     `json:"won_deals"`
	WonAmount float64 `json:"won_amount"`
}

// ClientRanking is one row of the top-clients ranking.
type ClientRanking struct {
	Name   string  `json:"name"`
	Deals  int     `json:"deals"`
	Amount float64 `json:"amount"`
	M2     float64 `json:"m2"`
}

// StageDistribution holds won/lost/open counts and their integer percentages.
// Percentages are rounded independently and may not add up to exactly 100.
type StageDistribution struct {
	Total   int `json:"total"`
	Won     int `json:"won"`
	Lost    int `json:"lost"`
	Open    int `json:"open"`
	WonPct  int `json:"won_pct"`
	LostPct int `json:"lost_pct"`
	OpenPct int `json:"open_pct"`
}

// SeguimientoData is the follow-up view: deals in follow-up or negotiation
// stages, split by the "+14" urgency marker in the stage label.
type SeguimientoData struct {
	Total        int            `json:"total"`
	TotalAmount  float64        `json:"total_amount"`
	UrgentCount  int            `json:"urgent_count"`
	UrgentAmount float64        `json:"urgent_amount"`
	NormalCount  int            `json:"normal_count"`
	NormalAmount float64        `json:"normal_amount"`
	Urgent       []EnrichedDeal `json:"urgent"`
	Normal       []EnrichedDeal `json:"normal"`
}

// PaymentTermsBucket groups confirmed orders by payment terms.
type PaymentTermsBucket struct {
	Terms  string  `json:"terms"`
	Deals  int     `json:"deals"`
	Amount float64 `json:"amount"`
}

// PedidosData is the confirmed-orders view.
type PedidosData struct {
	Total          int                  `json:"total"`
	TotalAmount    float64              `json:"total_amount"`
	TotalM2        float64              `json:"total_m2"`
	AvgPrecioM2    float64              `json:"avg_precio_m2"`
	ByPaymentTerms []PaymentTermsBucket `json:"by_payment_terms"`
	Deals          []EnrichedDeal       `json:"deals"`
}

// ItemRow is one line item in the items report, tagged with its deal.
type ItemRow struct {
	DealID   string   `json:"deal_id"`
	DealName string   `json:"deal_name"`
	Cliente  string   `json:"cliente"`
	Item     LineItem `json:"item"`
}

// ProductSummary totals the line items sharing a product name.
type ProductSummary struct {
	Name     string  `json:"name"`
	Items    int     `json:"items"`
	Quantity float64 `json:"quantity"`
	M2       float64 `json:"m2"`
	Subtotal float64 `json:"subtotal"`
}

// ItemsReportData is the line-item level report.
type ItemsReportData struct {
	Deals         int              `json:"deals"`
	TotalItems    int              `json:"total_items"`
	TotalQuantity float64          `json:"total_quantity"`
	TotalM2       float64          `json:"total_m2"`
	TotalSubtotal float64          `json:"total_subtotal"`
	ByProduct     []ProductSummary `json:"by_product"`
	Items         []ItemRow        `json:"items"`
}

// ReportData is the composite daily report. It is the payload held by the
// report cache.
type ReportData struct {
	TenantID    string    `json:"tenant_id"`
	PipelineID  string    `json:"pipeline_id"`
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`
	DealCount   int       `json:"deal_count"`
	Truncated   bool      `json:"truncated"`

	KPIs         KPISummary          `json:"kpis"`
	Pipeline     FullPipelineMetrics `json:"pipeline"`
	Distribution StageDistribution   `json:"distribution"`
	Monthly      []MonthlyPoint      `json:"monthly"`
	TopClients   []ClientRanking     `json:"top_clients"`
	Seguimiento  SeguimientoData     `json:"seguimiento"`
	Pedidos      PedidosData         `json:"pedidos"`
}
