// Package plan drafts short follow-up action plans for deals with Claude and
// keeps them in a PlanStore until they expire.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-reports/internal/model"
	"github.com/sells-group/pipeline-reports/internal/store"
	"github.com/sells-group/pipeline-reports/pkg/anthropic"
)

// Generator defaults.
const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	DefaultMaxTokens = 1024
	DefaultTTL       = 72 * time.Hour
)

// ErrEmptyPlan is returned when the model response has no summary.
var ErrEmptyPlan = eris.New("plan: empty plan")

const systemPrompt = `Eres un asistente comercial para una empresa que vende cristales y ventanas por metro cuadrado.
Recibes los datos de un negocio de HubSpot y propones un plan de acción breve para avanzar la venta.
Responde solo con JSON: {"summary": "<una o dos frases>", "steps": ["<paso>", ...]} con entre 2 y 5 pasos concretos.`

// Config tunes the generator. Zero values take the package defaults.
type Config struct {
	Model     string
	MaxTokens int64
	TTL       time.Duration
}

// Generator drafts and persists action plans.
type Generator struct {
	ai    anthropic.Client
	store store.PlanStore
	cfg   Config
	now   func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a Generator. st may be nil, in which case plans are
// generated but not persisted.
func NewGenerator(ai anthropic.Client, st store.PlanStore, cfg Config, opts ...Option) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	g := &Generator{ai: ai, store: st, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

type planJSON struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps"`
}

// Generate drafts a new plan for deal and stores it, replacing any previous
// plan for the same tenant and deal.
func (g *Generator) Generate(ctx context.Context, tenantID string, deal model.EnrichedDeal) (*model.ActionPlan, error) {
	log := zap.L().With(zap.String("tenant", tenantID), zap.String("deal_id", deal.ID))

	resp, err := g.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{}},
		},
		Messages: []anthropic.Message{{Role: "user", Content: Prompt(deal)}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "plan: generate for deal %s", deal.ID)
	}
	resp.Usage.LogCost(g.cfg.Model, deal.ID)

	var parsed planJSON
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &parsed); err != nil {
		log.Warn("plan: failed to parse model json", zap.Error(err))
		return nil, eris.Wrap(err, "plan: parse model json")
	}
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	if parsed.Summary == "" {
		return nil, eris.Wrapf(ErrEmptyPlan, "deal %s", deal.ID)
	}

	now := g.now().UTC()
	p := &model.ActionPlan{
		TenantID:  tenantID,
		DealID:    deal.ID,
		Summary:   parsed.Summary,
		Steps:     cleanSteps(parsed.Steps),
		Model:     g.cfg.Model,
		CreatedAt: now,
		ExpiresAt: now.Add(g.cfg.TTL),
	}

	if g.store != nil {
		if err := g.store.UpsertPlan(ctx, p); err != nil {
			return nil, eris.Wrap(err, "plan: store")
		}
	}
	log.Info("plan: generated", zap.Int("steps", len(p.Steps)), zap.Time("expires_at", p.ExpiresAt))
	return p, nil
}

// Get returns the stored plan for a deal, or nil when none is live.
func (g *Generator) Get(ctx context.Context, tenantID, dealID string) (*model.ActionPlan, error) {
	if g.store == nil {
		return nil, nil
	}
	p, err := g.store.GetPlan(ctx, tenantID, dealID)
	if err != nil {
		return nil, eris.Wrap(err, "plan: get")
	}
	return p, nil
}

// GetOrGenerate returns the live stored plan, generating one if needed.
func (g *Generator) GetOrGenerate(ctx context.Context, tenantID string, deal model.EnrichedDeal) (*model.ActionPlan, error) {
	p, err := g.Get(ctx, tenantID, deal.ID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	return g.Generate(ctx, tenantID, deal)
}

// Prompt renders the deal fields the model sees.
func Prompt(d model.EnrichedDeal) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("Negocio", d.Name)
	line("Etapa", d.StageLabel)
	line("Monto", fmt.Sprintf("%.0f", d.Amount))
	if d.M2Total > 0 {
		line("m² totales", fmt.Sprintf("%.2f", d.M2Total))
		line("Precio promedio m²", fmt.Sprintf("%.0f", d.PrecioPromedioM2))
	}
	line("Días desde la creación", fmt.Sprintf("%d", d.DaysSinceCreation))
	line("Zona", d.Zona)
	line("Cliente", d.ClienteNombre)
	line("Empresa", d.ClienteEmpresa)
	if d.AssociatedCompanyName != nil {
		line("Empresa asociada", *d.AssociatedCompanyName)
	}
	line("Condiciones de pago", d.CondicionesPago)
	line("Notas", d.NotasRapidas)
	if n := len(d.LineItems); n > 0 {
		line("Líneas de pedido", fmt.Sprintf("%d", n))
	}
	return b.String()
}

func cleanSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cleanJSON extracts a JSON object from text that may be wrapped in
// markdown code fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
