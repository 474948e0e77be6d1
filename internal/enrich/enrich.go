// Package enrich turns raw CRM deals into EnrichedDeal values and attaches
// best-effort association data.
package enrich

import (
	"math"
	"time"

	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/internal/stages"
)

// Enrich derives the read-only fields of raw against the stage snapshot dir.
// DaysSinceCreation is fixed at now and never recomputed.
func Enrich(raw model.RawDeal, dir *stages.Directory, now time.Time) model.EnrichedDeal {
	d := model.EnrichedDeal{
		RawDeal:    raw,
		Name:       raw.Prop(model.PropDealName),
		Amount:     raw.Number(model.PropAmount),
		StageID:    raw.Prop(model.PropDealStage),
		PipelineID: raw.Prop(model.PropPipeline),
		OwnerID:    raw.Prop(model.PropOwnerID),
		Zona:       raw.Prop(model.PropZona),
		M2Total:    raw.Number(model.PropM2Totales),

		ClienteNombre:   raw.Prop(model.PropClienteNombre),
		ClienteEmpresa:  raw.Prop(model.PropClienteEmpresa),
		ClienteEmail:    raw.Prop(model.PropClienteEmail),
		ClienteTelefono: raw.Prop(model.PropClienteTelefono),
		CondicionesPago: raw.Prop(model.PropCondicionesPago),
		NotasRapidas:    raw.Prop(model.PropNotasRapidas),
	}

	if dir != nil {
		d.StageLabel = dir.Label(d.StageID)
	}
	if t := model.ParseTime(raw.Prop(model.PropCloseDate)); !t.IsZero() {
		d.CloseDate = &t
	}
	d.DaysSinceCreation = daysBetween(raw.CreatedAt, now)
	d.PrecioPromedioM2 = model.PricePerM2(d.Amount, d.M2Total)
	return d
}

// EnrichAll enriches every deal against the same snapshot and instant.
func EnrichAll(raws []model.RawDeal, dir *stages.Directory, now time.Time) []model.EnrichedDeal {
	out := make([]model.EnrichedDeal, len(raws))
	for i, r := range raws {
		out[i] = Enrich(r, dir, now)
	}
	return out
}

// daysBetween returns whole elapsed days, floored. Missing or future
// creation dates count as 0.
func daysBetween(from, to time.Time) int {
	if from.IsZero() || to.Before(from) {
		return 0
	}
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
