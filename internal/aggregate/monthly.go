package aggregate

import (
	"fmt"
	"time"

	"github.com/sells-group/pipeline-reports/internal/model"
)

// Months is the length of the monthly series.
const Months = 12

var monthNames = [...]string{
	"Ene", "Feb", "Mar", "Abr", "May", "Jun",
	"Jul", "Ago", "Sep", "Oct", "Nov", "Dic",
}

// WindowStart is the first instant of the oldest month in the series ending
// at now's month, in now's location.
func WindowStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-(Months-1), 1, 0, 0, 0, 0, now.Location())
}

// MonthlySeries buckets deals by creation month over the Months months
// ending at now, oldest first. Deals created before WindowStart(now) or
// after now are left out.
func (a *Aggregator) MonthlySeries(deals []model.EnrichedDeal, now time.Time) []model.MonthlyPoint {
	start := WindowStart(now)

	points := make([]model.MonthlyPoint, Months)
	index := make(map[string]int, Months)
	for i := range points {
		m := start.AddDate(0, i, 0)
		key := m.Format("2006-01")
		points[i] = model.MonthlyPoint{
			Month: key,
			Label: fmt.Sprintf("%s %d", monthNames[m.Month()-1], m.Year()),
		}
		index[key] = i
	}

	for _, d := range deals {
		created := d.CreatedAt.In(now.Location())
		if created.Before(start) || created.After(now) {
			continue
		}
		i, ok := index[created.Format("2006-01")]
		if !ok {
			continue
		}
		p := &points[i]
		p.Deals++
		p.Amount += d.Amount
		p.M2 += d.M2Total
		if a.classify(d).Won {
			p.WonDeals++
			p.WonAmount += d.Amount
		}
	}
	return points
}
