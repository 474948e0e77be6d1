package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Line item property names.
const (
	PropLineName        = "name"
	PropLineQuantity    = "quantity"
	PropLinePrice       = "price"
	PropLineAnchoMM     = "ancho_mm"
	PropLineAltoMM      = "alto_mm"
	PropLineM2PorUnidad = "m2_por_unidad"
	PropLinePrecioM2    = "precio_m2"
)

// LineItemProperties is the property list requested on batch reads.
var LineItemProperties = []string{
	PropLineName, PropLineQuantity, PropLinePrice, PropLineAnchoMM,
	PropLineAltoMM, PropLineM2PorUnidad, PropLinePrecioM2,
}

// mm² per m².
var mm2PerM2 = decimal.NewFromInt(1_000_000)

// LineItem is one product line attached to a deal, with its derived area and
// pre-tax subtotal.
type LineItem struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Quantity       float64           `json:"quantity"`
	AnchoMM        float64           `json:"ancho_mm"`
	AltoMM         float64           `json:"alto_mm"`
	M2PorUnidad    float64           `json:"m2_por_unidad"`
	PrecioM2       float64           `json:"precio_m2"`
	Price          float64           `json:"price"`
	M2Totales      float64           `json:"m2_totales"`
	SubtotalSinIva float64           `json:"subtotal_sin_iva"`
	Properties     map[string]string `json:"-"`
}

// NewLineItem derives a LineItem from raw CRM properties.
//
// Area per unit comes from m2_por_unidad, or ancho_mm × alto_mm when that is
// missing. The subtotal is area × precio_m2, falling back to price × quantity
// for items sold per unit.
func NewLineItem(id string, props map[string]string) LineItem {
	get := func(k string) decimal.Decimal {
		return decimal.NewFromFloat(ParseNumber(props[k]))
	}

	qty := get(PropLineQuantity)
	ancho := get(PropLineAnchoMM)
	alto := get(PropLineAltoMM)
	perUnit := get(PropLineM2PorUnidad)
	precioM2 := get(PropLinePrecioM2)
	price := get(PropLinePrice)

	if perUnit.IsZero() && ancho.IsPositive() && alto.IsPositive() {
		perUnit = ancho.Mul(alto).Div(mm2PerM2)
	}
	m2 := qty.Mul(perUnit)

	var subtotal decimal.Decimal
	if precioM2.IsPositive() {
		subtotal = m2.Mul(precioM2)
	} else {
		subtotal = price.Mul(qty)
	}

	return LineItem{
		ID:             id,
		Name:           strings.TrimSpace(props[PropLineName]),
		Quantity:       qty.InexactFloat64(),
		AnchoMM:        ancho.InexactFloat64(),
		AltoMM:         alto.InexactFloat64(),
		M2PorUnidad:    perUnit.Round(4).InexactFloat64(),
		PrecioM2:       precioM2.InexactFloat64(),
		Price:          price.InexactFloat64(),
		M2Totales:      m2.Round(4).InexactFloat64(),
		SubtotalSinIva: subtotal.Round(2).InexactFloat64(),
		Properties:     props,
	}
}
