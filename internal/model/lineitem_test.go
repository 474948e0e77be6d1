package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestNewLineItem_FromDimensions(t *testing.T) {
	li := NewLineItem("li-1", map[string]string{
		PropLineName:     "Ventana corrediza",
		PropLineQuantity: "4",
		PropLineAnchoMM:  "1500",
		PropLineAltoMM:   "1000",
		PropLinePrecioM2: "120",
	})

	assert.Equal(t, "li-1", li.ID)
	assert.Equal(t, "Ventana corrediza", li.Name)
	assert.InDelta(t, 1.5, li.M2PorUnidad, 0.0001)
	assert.InDelta(t, 6, li.M2Totales, 0.0001)
	assert.InDelta(t, 720, li.SubtotalSinIva, 0.001)
}

func TestNewLineItem_ExplicitAreaWins(t *testing.T) {
	li := NewLineItem("li-2", map[string]string{
		PropLineQuantity:    "2",
		PropLineAnchoMM:     "1000",
		PropLineAltoMM:      "1000",
		PropLineM2PorUnidad: "2.5",
		PropLinePrecioM2:    "10",
	})

	assert.InDelta(t, 2.5, li.M2PorUnidad, 0.0001)
	assert.InDelta(t, 5, li.M2Totales, 0.0001)
	assert.InDelta(t, 50, li.SubtotalSinIva, 0.001)
}

func TestNewLineItem_UnitPriceFallback(t *testing.T) {
	li := NewLineItem("li-3", map[string]string{
		PropLineName:     "Instalación",
		PropLineQuantity: "3",
		PropLinePrice:    "49.99",
	})

	assert.Zero(t, li.M2Totales)
	assert.InDelta(t, 149.97, li.SubtotalSinIva, 0.001)
}

func TestNewLineItem_MalformedValues(t *testing.T) {
	li := NewLineItem("li-4", map[string]string{
		PropLineQuantity: "dos",
		PropLineAnchoMM:  "",
		PropLinePrecioM2: "n/a",
	})

	assert.Zero(t, li.Quantity)
	assert.Zero(t, li.M2Totales)
	assert.Zero(t, li.SubtotalSinIva)
}

func TestNewLineItem_OutOfRangeValues(t *testing.T) {
	li := NewLineItem("li-5", map[string]string{
		PropLineQuantity:    "1e400",
		PropLineM2PorUnidad: "-1e400",
		PropLinePrecioM2:    "1e999999999",
		PropLinePrice:       "Inf",
	})

	assert.Zero(t, li.Quantity)
	assert.Zero(t, li.M2PorUnidad)
	assert.Zero(t, li.PrecioM2)
	assert.Zero(t, li.Price)
	assert.Zero(t, li.SubtotalSinIva)

	_, err := json.Marshal(li)
	require.NoError(t, err)
}
