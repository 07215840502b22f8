package research

import (
	"context"
	"sync"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxHypothesisFanOut caps how many hypotheses the hunter works
// concurrently. Confidence updates stay safe regardless; this only
// bounds provider pressure.
const maxHypothesisFanOut = 3

// Hunter plays devil's advocate. For each target hypothesis it pushes
// adversarial searches through the gatherer, then asks the model
// whether the counter-evidence, fresh or already linked, genuinely
// conflicts with the claim. Conflicts at or above the intensity's
// severity floor are filed as contradictions.
type Hunter struct {
	gatherer *Gatherer
	llm      domain.LLMClient
	logger   *zap.Logger
}

func NewHunter(gatherer *Gatherer, llm domain.LLMClient, logger *zap.Logger) *Hunter {
	return &Hunter{gatherer: gatherer, llm: llm, logger: logger}
}

func (h *Hunter) Kind() Kind { return KindContradictionHunter }

func (h *Hunter) Execute(ctx context.Context, in Input, rctx *Context) (*Result, error) {
	targets, err := h.resolveTargets(ctx, in, rctx)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return &Result{}, nil
	}

	var company string
	if rctx.Engagement != nil {
		company = rctx.Engagement.TargetCompanyName
	}
	breadth := in.Intensity.SearchBreadth()
	floor := in.Intensity.MinSeverity().Rank()

	var (
		mu       sync.Mutex
		found    []domain.Contradiction
		gathered []domain.Evidence
		queries  []string
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxHypothesisFanOut)
	for i := range targets {
		target := targets[i]
		eg.Go(func() error {
			cons, evs, qs, err := h.huntOne(egCtx, in, rctx, company, target, breadth, floor)
			if err != nil {
				return err
			}
			mu.Lock()
			found = append(found, cons...)
			gathered = append(gathered, evs...)
			queries = append(queries, qs...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Contradictions: found,
		Evidence:       gathered,
		SearchQueries:  queries,
	}, nil
}

func (h *Hunter) huntOne(ctx context.Context, in Input, rctx *Context, company string, target domain.Hypothesis, breadth, floor int) ([]domain.Contradiction, []domain.Evidence, []string, error) {
	adversarial := adversarialQueryVariants(company, target.Content, breadth)

	res, err := h.gatherer.Execute(ctx, Input{
		Queries:        adversarial,
		HypothesisIDs:  []uuid.UUID{target.ID},
		Sources:        []domain.SourceClass{domain.ClassWeb},
		MaxResults:     in.MaxResults,
		MinCredibility: in.MinCredibility,
	}, rctx)
	if err != nil {
		return nil, nil, nil, err
	}

	// Analyze the fresh counter-evidence together with whatever is
	// already linked to the hypothesis, so a contradiction gathered in
	// an earlier run still gets filed.
	candidates := res.Evidence
	if rctx.Evidence != nil {
		linked, err := rctx.Evidence.ListByHypothesis(ctx, target.ID)
		if err != nil {
			h.logger.Warn("linked evidence unavailable",
				zap.String("hypothesis_id", target.ID.String()), zap.Error(err))
		} else {
			candidates = append(candidates, linked...)
		}
	}

	seen := make(map[uuid.UUID]bool, len(candidates))
	var out []domain.Contradiction
	for i := range candidates {
		ev := candidates[i]
		if seen[ev.ID] || ev.DuplicateOf != nil {
			continue
		}
		seen[ev.ID] = true
		// Supporting evidence is not re-litigated; conflicts hide in
		// contradicting and neutral items.
		if ev.Sentiment == domain.SentimentSupporting {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}

		analysis, err := h.llm.AnalyzeConflict(ctx, target.Content, ev.Content)
		if err != nil {
			h.logger.Warn("conflict analysis failed", zap.Error(err))
			continue
		}
		if analysis == nil || !analysis.Conflicts {
			continue
		}
		severity := analysis.Severity
		if !domain.ValidSeverity(string(severity)) {
			severity = domain.SeverityMedium
		}
		if severity.Rank() < floor {
			continue
		}

		evID := ev.ID
		hypID := target.ID
		con := domain.Contradiction{
			EngagementID: rctx.EngagementID,
			HypothesisID: &hypID,
			EvidenceID:   &evID,
			Description:  analysis.Description,
			Severity:     severity,
			Status:       domain.ContradictionUnresolved,
		}
		if con.Description == "" {
			con.Description = "the evidence conflicts with this hypothesis"
		}
		if rctx.Contradictions != nil {
			if err := rctx.Contradictions.Create(ctx, &con); err != nil {
				return nil, nil, nil, &PersistError{Op: "record contradiction", Err: err}
			}
		}
		out = append(out, con)
		rctx.emit(domain.Event{
			Type: domain.EventContradictionDetected,
			Data: map[string]any{
				"contradiction_id": con.ID.String(),
				"hypothesis_id":    hypID.String(),
				"evidence_id":      evID.String(),
				"severity":         string(severity),
				"description":      con.Description,
			},
		})
	}
	return out, res.Evidence, res.SearchQueries, nil
}

func (h *Hunter) resolveTargets(ctx context.Context, in Input, rctx *Context) ([]domain.Hypothesis, error) {
	if len(in.HypothesisIDs) > 0 {
		targets, err := rctx.Hypotheses.ListByIDs(ctx, in.HypothesisIDs)
		if err != nil {
			return nil, &PersistError{Op: "load hypotheses", Err: err}
		}
		return filterTestable(targets), nil
	}
	all, err := rctx.Hypotheses.ListByEngagement(ctx, rctx.EngagementID)
	if err != nil {
		return nil, &PersistError{Op: "load hypotheses", Err: err}
	}
	return filterTestable(all), nil
}

// filterTestable drops the root thesis node and anything refuted. The
// root is assessed through its pillars and refuted nodes are closed.
func filterTestable(hs []domain.Hypothesis) []domain.Hypothesis {
	out := make([]domain.Hypothesis, 0, len(hs))
	for _, h := range hs {
		if h.Type == domain.HypothesisThesis {
			continue
		}
		if h.Status.Terminal() {
			continue
		}
		out = append(out, h)
	}
	return out
}
