package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-reports/internal/model"
)

func TestSeguimiento(t *testing.T) {
	deals := []model.EnrichedDeal{
		{RawDeal: model.RawDeal{ID: "n1"}, StageLabel: "Seguimiento", Amount: 100, DaysSinceCreation: 3},
		{RawDeal: model.RawDeal{ID: "u1"}, StageLabel: "Seguimiento +14", Amount: 200, DaysSinceCreation: 20},
		{RawDeal: model.RawDeal{ID: "n2"}, StageLabel: "Negociación", Amount: 50, DaysSinceCreation: 9},
		{RawDeal: model.RawDeal{ID: "u2"}, StageLabel: "Negociación +14", Amount: 10, DaysSinceCreation: 30},
		{RawDeal: model.RawDeal{ID: "x"}, StageLabel: "Propuesta", Amount: 999},
	}

	s := New(nil).Seguimiento(deals)
	assert.Equal(t, 4, s.Total)
	assert.InDelta(t, 360, s.TotalAmount, 0.001)
	assert.Equal(t, 2, s.UrgentCount)
	assert.InDelta(t, 210, s.UrgentAmount, 0.001)
	assert.Equal(t, 2, s.NormalCount)
	assert.InDelta(t, 150, s.NormalAmount, 0.001)

	require.Len(t, s.Urgent, 2)
	assert.Equal(t, "u2", s.Urgent[0].ID)
	require.Len(t, s.Normal, 2)
	assert.Equal(t, "n2", s.Normal[0].ID)
}

func TestPedidos(t *testing.T) {
	deals := []model.EnrichedDeal{
		{StageLabel: "Pedido Confirmado", Amount: 1000, M2Total: 10, CondicionesPago: "30 días"},
		{StageLabel: "Orden Recibida", Amount: 3000, M2Total: 10, CondicionesPago: "Contado"},
		{StageLabel: "Pedido Confirmado", Amount: 500, M2Total: 0},
		{StageLabel: "Propuesta", Amount: 7777, M2Total: 1},
	}

	p := New(nil).Pedidos(deals)
	assert.Equal(t, 3, p.Total)
	assert.InDelta(t, 4500, p.TotalAmount, 0.001)
	assert.InDelta(t, 20, p.TotalM2, 0.001)
	assert.InDelta(t, 225, p.AvgPrecioM2, 0.001)
	assert.Len(t, p.Deals, 3)

	require.Len(t, p.ByPaymentTerms, 3)
	assert.Equal(t, model.PaymentTermsBucket{Terms: "Contado", Deals: 1, Amount: 3000}, p.ByPaymentTerms[0])
	assert.Equal(t, "30 días", p.ByPaymentTerms[1].Terms)
	assert.Equal(t, "Sin condiciones", p.ByPaymentTerms[2].Terms)
}

func TestPedidos_Empty(t *testing.T) {
	p := New(nil).Pedidos(nil)
	assert.Zero(t, p.Total)
	assert.Zero(t, p.AvgPrecioM2)
	assert.NotNil(t, p.ByPaymentTerms)
}

func TestItems(t *testing.T) {
	deals := []model.EnrichedDeal{
		{
			RawDeal:        model.RawDeal{ID: "d1"},
			Name:           "Torre",
			ClienteEmpresa: "Andes",
			LineItems: []model.LineItem{
				{ID: "a", Name: "Vidrio templado", Quantity: 2, M2Totales: 4, SubtotalSinIva: 400},
				{ID: "b", Name: "Perfil", Quantity: 10, M2Totales: 0, SubtotalSinIva: 50.5},
			},
		},
		{RawDeal: model.RawDeal{ID: "d2"}},
		{
			RawDeal: model.RawDeal{ID: "d3"},
			LineItems: []model.LineItem{
				{ID: "c", Name: "Vidrio templado", Quantity: 1, M2Totales: 1.5, SubtotalSinIva: 150},
				{ID: "d", Quantity: 1, SubtotalSinIva: 0.1},
			},
		},
	}

	r := New(nil).Items(deals)
	assert.Equal(t, 2, r.Deals)
	assert.Equal(t, 4, r.TotalItems)
	assert.InDelta(t, 14, r.TotalQuantity, 0.0001)
	assert.InDelta(t, 5.5, r.TotalM2, 0.0001)
	assert.Equal(t, 600.6, r.TotalSubtotal)

	require.Len(t, r.ByProduct, 3)
	assert.Equal(t, model.ProductSummary{Name: "Vidrio templado", Items: 2, Quantity: 3, M2: 5.5, Subtotal: 550}, r.ByProduct[0])
	assert.Equal(t, "Perfil", r.ByProduct[1].Name)
	assert.Equal(t, "Sin nombre", r.ByProduct[2].Name)

	require.Len(t, r.Items, 4)
	assert.Equal(t, "Andes", r.Items[0].Cliente)
	assert.Equal(t, NoClient, r.Items[2].Cliente)
}
