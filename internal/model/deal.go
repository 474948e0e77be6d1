package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Deal property names requested from HubSpot. The cliente_* and m2 fields are
// custom properties defined on the portal.
const (
	PropDealName        = "dealname"
	PropAmount          = "amount"
	PropDealStage       = "dealstage"
	PropPipeline        = "pipeline"
	PropCreateDate      = "createdate"
	PropCloseDate       = "closedate"
	PropOwnerID         = "hubspot_owner_id"
	PropM2Totales       = "m2_totales"
	PropClienteNombre   = "cliente_nombre"
	PropClienteEmpresa  = "cliente_empresa"
	PropClienteEmail    = "cliente_email"
	PropClienteTelefono = "cliente_telefono"
	PropCondicionesPago = "condiciones_de_pago"
	PropNotasRapidas    = "notas_rapidas"
	PropZona            = "zona"
	PropObjectID        = "hs_object_id"
)

// DealProperties is the property list sent with every deal search.
var DealProperties = []string{
	PropDealName, PropAmount, PropDealStage, PropPipeline, PropCreateDate,
	PropCloseDate, PropOwnerID, PropM2Totales, PropClienteNombre,
	PropClienteEmpresa, PropClienteEmail, PropClienteTelefono,
	PropCondicionesPago, PropNotasRapidas, PropZona,
}

// Stage is one step of a deal pipeline.
type Stage struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	DisplayOrder int    `json:"display_order"`
}

// RawDeal is a deal record as returned by the CRM. Properties is open-ended
// because the portal schema is not known at compile time.
type RawDeal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Archived   bool              `json:"archived"`
}

// Prop returns the trimmed value of a property, or "" when absent.
func (d RawDeal) Prop(name string) string {
	if d.Properties == nil {
		return ""
	}
	return strings.TrimSpace(d.Properties[name])
}

// Number parses a numeric property defensively (see ParseNumber).
func (d RawDeal) Number(name string) float64 {
	return ParseNumber(d.Prop(name))
}

// EnrichedDeal is a RawDeal plus derived, read-only fields. Values are built
// once by the enrichment pass; later passes return modified copies.
type EnrichedDeal struct {
	RawDeal

	Name              string     `json:"name"`
	Amount            float64    `json:"amount"`
	StageID           string     `json:"stage_id"`
	StageLabel        string     `json:"stage_label"`
	PipelineID        string     `json:"pipeline_id"`
	OwnerID           string     `json:"owner_id,omitempty"`
	Zona              string     `json:"zona,omitempty"`
	CloseDate         *time.Time `json:"close_date,omitempty"`
	M2Total           float64    `json:"m2_total"`
	DaysSinceCreation int        `json:"days_since_creation"`
	PrecioPromedioM2  float64    `json:"precio_promedio_m2"`

	ClienteNombre   string `json:"cliente_nombre"`
	ClienteEmpresa  string `json:"cliente_empresa"`
	ClienteEmail    string `json:"cliente_email"`
	ClienteTelefono string `json:"cliente_telefono"`
	CondicionesPago string `json:"condiciones_pago"`
	NotasRapidas    string `json:"notas_rapidas"`

	AssociatedCompanyName *string    `json:"associated_company_name"`
	LineItems             []LineItem `json:"line_items,omitempty"`
}

// WithM2Total returns a copy with the area replaced and the average price per
// m² recomputed.
func (d EnrichedDeal) WithM2Total(m2 float64) EnrichedDeal {
	d.M2Total = m2
	d.PrecioPromedioM2 = PricePerM2(d.Amount, m2)
	return d
}

// WithCompanyName returns a copy carrying the resolved company name.
func (d EnrichedDeal) WithCompanyName(name *string) EnrichedDeal {
	d.AssociatedCompanyName = name
	return d
}

// WithLineItems returns a copy holding the given line items. When their area
// sum is positive it replaces M2Total.
func (d EnrichedDeal) WithLineItems(items []LineItem) EnrichedDeal {
	d.LineItems = items
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(decimal.NewFromFloat(li.M2Totales))
	}
	if total.IsPositive() {
		return d.WithM2Total(total.Round(4).InexactFloat64())
	}
	return d
}

// PricePerM2 divides amount by area, returning 0 when the area is not positive
// or the quotient overflows.
func PricePerM2(amount, m2 float64) float64 {
	if m2 <= 0 {
		return 0
	}
	v := decimal.NewFromFloat(amount).
		Div(decimal.NewFromFloat(m2)).
		Round(2).
		InexactFloat64()
	if math.IsInf(v, 0) {
		return 0
	}
	return v
}

// maxMagnitude bounds accepted CRM numbers. Larger values are treated as
// malformed so sums and products stay finite.
const maxMagnitude = 1e15

// ParseNumber parses a CRM numeric string. Empty, malformed, non-finite and
// out-of-range values yield 0; it never fails.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.Abs(v) > maxMagnitude {
		return 0
	}
	return v
}

// ParseTime parses a CRM date property. HubSpot emits both RFC 3339 strings
// and epoch milliseconds; anything else yields the zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if len(s) == len("2006-01-02") {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
