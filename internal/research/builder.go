package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Builder turns a thesis statement into the engagement's hypothesis
// tree: one root thesis node, its sub-theses, and their stated
// assumptions, wired together with typed edges. Every node starts
// untested at confidence 0.5; only gathered evidence moves it.
type Builder struct {
	llm      domain.LLMClient
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewBuilder(llm domain.LLMClient, embedder domain.EmbeddingClient, logger *zap.Logger) *Builder {
	return &Builder{llm: llm, embedder: embedder, logger: logger}
}

func (b *Builder) Kind() Kind { return KindHypothesisBuilder }

func (b *Builder) Execute(ctx context.Context, in Input, rctx *Context) (*Result, error) {
	thesis := strings.TrimSpace(in.Thesis)
	if thesis == "" && rctx.Engagement != nil {
		thesis = strings.TrimSpace(rctx.Engagement.ThesisSummary)
	}
	if thesis == "" {
		return nil, &ValidationError{Field: "thesis", Reason: "a thesis statement is required"}
	}

	// Structuring is idempotent per engagement: a re-run reuses the
	// existing tree instead of planting a second root.
	existing, err := rctx.Hypotheses.ListByEngagement(ctx, rctx.EngagementID)
	if err != nil {
		return nil, &PersistError{Op: "load hypotheses", Err: err}
	}
	for _, h := range existing {
		if h.Type == domain.HypothesisThesis {
			return &Result{Hypotheses: existing}, nil
		}
	}

	var company, sector string
	if rctx.Engagement != nil {
		company = rctx.Engagement.TargetCompanyName
		sector = rctx.Engagement.Sector
	}

	decomposition := b.decompose(ctx, company, sector, thesis)

	root := domain.Hypothesis{
		EngagementID: rctx.EngagementID,
		Type:         domain.HypothesisThesis,
		Content:      decomposition.RootStatement,
		Confidence:   0.5,
		Status:       domain.StatusUntested,
		Importance:   1,
	}
	b.embed(ctx, &root)
	if err := rctx.Hypotheses.Create(ctx, &root); err != nil {
		return nil, &PersistError{Op: "create root hypothesis", Err: err}
	}
	created := []domain.Hypothesis{root}
	b.emitNode(rctx, &root)

	for _, sub := range decomposition.SubTheses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content := strings.TrimSpace(sub.Content)
		if content == "" {
			continue
		}
		node := domain.Hypothesis{
			EngagementID: rctx.EngagementID,
			ParentID:     &root.ID,
			Type:         domain.HypothesisSubThesis,
			Content:      content,
			Confidence:   0.5,
			Status:       domain.StatusUntested,
			Importance:   normalizeWeight(sub.Importance),
			Testability:  normalizeWeight(sub.Testability),
		}
		b.embed(ctx, &node)
		if err := rctx.Hypotheses.Create(ctx, &node); err != nil {
			return nil, &PersistError{Op: "create sub-thesis", Err: err}
		}
		created = append(created, node)
		b.emitNode(rctx, &node)
		b.createEdge(ctx, rctx, root.ID, node.ID, domain.EdgeRequires, node.Importance,
			"the thesis depends on this pillar")

		for _, assumption := range sub.Assumptions {
			assumption = strings.TrimSpace(assumption)
			if assumption == "" {
				continue
			}
			an := domain.Hypothesis{
				EngagementID: rctx.EngagementID,
				ParentID:     &node.ID,
				Type:         domain.HypothesisAssumption,
				Content:      assumption,
				Confidence:   0.5,
				Status:       domain.StatusUntested,
				Importance:   0.5,
				Testability:  0.5,
			}
			b.embed(ctx, &an)
			if err := rctx.Hypotheses.Create(ctx, &an); err != nil {
				return nil, &PersistError{Op: "create assumption", Err: err}
			}
			created = append(created, an)
			b.emitNode(rctx, &an)
			b.createEdge(ctx, rctx, an.ID, node.ID, domain.EdgeSupports, 0.5,
				"stated assumption behind this pillar")
		}
	}

	return &Result{Hypotheses: created}, nil
}

func (b *Builder) decompose(ctx context.Context, company, sector, thesis string) *domain.ThesisDecomposition {
	if b.llm != nil {
		d, err := b.llm.DecomposeThesis(ctx, company, sector, thesis)
		if err == nil && d != nil && len(d.SubTheses) > 0 {
			if strings.TrimSpace(d.RootStatement) == "" {
				d.RootStatement = thesis
			}
			return d
		}
		if err != nil {
			b.logger.Warn("thesis decomposition failed, using fallback tree", zap.Error(err))
		}
	}
	return fallbackDecomposition(company, thesis)
}

// fallbackDecomposition is the deterministic tree used when the model
// cannot produce one. The pillars mirror what a diligence checklist
// opens with.
func fallbackDecomposition(company, thesis string) *domain.ThesisDecomposition {
	subject := strings.TrimSpace(company)
	if subject == "" {
		subject = "the company"
	}
	return &domain.ThesisDecomposition{
		RootStatement: thesis,
		SubTheses: []domain.DecomposedHypothesis{
			{
				Content:     fmt.Sprintf("%s can sustain its revenue growth", subject),
				Importance:  0.8,
				Testability: 0.8,
				Assumptions: []string{fmt.Sprintf("demand for %s's offering holds up", subject)},
			},
			{
				Content:     fmt.Sprintf("%s holds a durable competitive position", subject),
				Importance:  0.7,
				Testability: 0.6,
				Assumptions: []string{"competitors cannot replicate the offering quickly"},
			},
			{
				Content:     fmt.Sprintf("%s's margins hold or improve at scale", subject),
				Importance:  0.6,
				Testability: 0.7,
			},
		},
	}
}

// embed attaches a content embedding before the node is stored. A
// failed embedding is survivable: the node then links to evidence at
// the default relevance instead.
func (b *Builder) embed(ctx context.Context, h *domain.Hypothesis) {
	if b.embedder == nil {
		return
	}
	vec, err := b.embedder.Embed(ctx, h.Content)
	if err != nil {
		b.logger.Warn("hypothesis embedding failed", zap.Error(err))
		return
	}
	h.Embedding = vec
}

func (b *Builder) createEdge(ctx context.Context, rctx *Context, source, target uuid.UUID, rel domain.EdgeRelationship, strength float32, reasoning string) {
	if rctx.Edges == nil {
		return
	}
	edge := &domain.HypothesisEdge{
		EngagementID: rctx.EngagementID,
		SourceID:     source,
		TargetID:     target,
		Relationship: rel,
		Strength:     strength,
		Reasoning:    reasoning,
	}
	if err := rctx.Edges.Create(ctx, edge); err != nil {
		b.logger.Warn("edge not recorded", zap.Error(err))
	}
}

func (b *Builder) emitNode(rctx *Context, h *domain.Hypothesis) {
	rctx.emit(domain.Event{
		Type: domain.EventHypothesisGenerated,
		Data: map[string]any{
			"hypothesis_id": h.ID.String(),
			"type":          string(h.Type),
			"content":       h.Content,
			"importance":    h.Importance,
		},
	})
}

func normalizeWeight(v float32) float32 {
	if v <= 0 {
		return 0.5
	}
	if v > 1 {
		return 1
	}
	return v
}
