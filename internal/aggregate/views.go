package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/pipeline-reports/internal/model"
)

const (
	noPaymentTerms = "Sin condiciones"
	noProductName  = "Sin nombre"
)

// Seguimiento collects follow-up deals and splits them on the urgency
// marker. Each list is ordered by DaysSinceCreation, oldest first.
func (a *Aggregator) Seguimiento(deals []model.EnrichedDeal) model.SeguimientoData {
	s := model.SeguimientoData{
		Urgent: []model.EnrichedDeal{},
		Normal: []model.EnrichedDeal{},
	}
	for _, d := range deals {
		r := a.classify(d)
		if !r.FollowUp {
			continue
		}
		s.Total++
		s.TotalAmount += d.Amount
		if r.Urgent {
			s.UrgentCount++
			s.UrgentAmount += d.Amount
			s.Urgent = append(s.Urgent, d)
		} else {
			s.NormalCount++
			s.NormalAmount += d.Amount
			s.Normal = append(s.Normal, d)
		}
	}
	byAge(s.Urgent)
	byAge(s.Normal)
	return s
}

func byAge(deals []model.EnrichedDeal) {
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].DaysSinceCreation > deals[j].DaysSinceCreation
	})
}

// Pedidos summarises confirmed orders: totals, the area-weighted average
// price per m² and a breakdown by payment terms sorted by amount.
func (a *Aggregator) Pedidos(deals []model.EnrichedDeal) model.PedidosData {
	p := model.PedidosData{
		ByPaymentTerms: []model.PaymentTermsBucket{},
		Deals:          []model.EnrichedDeal{},
	}

	index := make(map[string]int)
	for _, d := range deals {
		if !a.classify(d).ConfirmedOrder {
			continue
		}
		p.Total++
		p.TotalAmount += d.Amount
		p.TotalM2 += d.M2Total
		p.Deals = append(p.Deals, d)

		terms := d.CondicionesPago
		if terms == "" {
			terms = noPaymentTerms
		}
		i, ok := index[terms]
		if !ok {
			i = len(p.ByPaymentTerms)
			index[terms] = i
			p.ByPaymentTerms = append(p.ByPaymentTerms, model.PaymentTermsBucket{Terms: terms})
		}
		p.ByPaymentTerms[i].Deals++
		p.ByPaymentTerms[i].Amount += d.Amount
	}

	p.AvgPrecioM2 = model.PricePerM2(p.TotalAmount, p.TotalM2)
	sort.SliceStable(p.ByPaymentTerms, func(i, j int) bool {
		return p.ByPaymentTerms[i].Amount > p.ByPaymentTerms[j].Amount
	})
	return p
}

// Items flattens the line items of deals and groups them by product name,
// largest subtotal first. Sums are accumulated in decimal.
func (a *Aggregator) Items(deals []model.EnrichedDeal) model.ItemsReportData {
	type acc struct {
		items             int
		qty, m2, subtotal decimal.Decimal
	}

	out := model.ItemsReportData{
		ByProduct: []model.ProductSummary{},
		Items:     []model.ItemRow{},
	}
	var qty, m2, subtotal decimal.Decimal
	var order []string
	products := make(map[string]*acc)

	for _, d := range deals {
		if len(d.LineItems) == 0 {
			continue
		}
		out.Deals++
		for _, li := range d.LineItems {
			out.Items = append(out.Items, model.ItemRow{
				DealID:   d.ID,
				DealName: d.Name,
				Cliente:  clientKey(d),
				Item:     li,
			})

			liQty := decimal.NewFromFloat(li.Quantity)
			liM2 := decimal.NewFromFloat(li.M2Totales)
			liSub := decimal.NewFromFloat(li.SubtotalSinIva)
			qty, m2, subtotal = qty.Add(liQty), m2.Add(liM2), subtotal.Add(liSub)

			name := li.Name
			if name == "" {
				name = noProductName
			}
			p, ok := products[name]
			if !ok {
				p = &acc{}
				products[name] = p
				order = append(order, name)
			}
			p.items++
			p.qty = p.qty.Add(liQty)
			p.m2 = p.m2.Add(liM2)
			p.subtotal = p.subtotal.Add(liSub)
		}
	}

	out.TotalItems = len(out.Items)
	out.TotalQuantity = qty.InexactFloat64()
	out.TotalM2 = m2.Round(4).InexactFloat64()
	out.TotalSubtotal = subtotal.Round(2).InexactFloat64()

	for _, name := range order {
		p := products[name]
		out.ByProduct = append(out.ByProduct, model.ProductSummary{
			Name:     name,
			Items:    p.items,
			Quantity: p.qty.InexactFloat64(),
			M2:       p.m2.Round(4).InexactFloat64(),
			Subtotal: p.subtotal.Round(2).InexactFloat64(),
		})
	}
	sort.SliceStable(out.ByProduct, func(i, j int) bool {
		return out.ByProduct[i].Subtotal > out.ByProduct[j].Subtotal
	})
	return out
}
