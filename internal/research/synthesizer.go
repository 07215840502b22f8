package research

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
	"go.uber.org/zap"
)

const (
	// contradictionPenalty is subtracted from workflow confidence per
	// unresolved contradiction, up to maxContradictionPenalty.
	contradictionPenalty    = 0.05
	maxContradictionPenalty = 0.25
)

// Synthesizer folds a finished run into a verdict. The narrative comes
// from the model when it cooperates; the confidence number is always
// the engine's own importance-weighted aggregate, so the verdict can
// never report a conviction the evidence does not carry.
type Synthesizer struct {
	llm    domain.LLMClient
	logger *zap.Logger
}

func NewSynthesizer(llm domain.LLMClient, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{llm: llm, logger: logger}
}

func (s *Synthesizer) Kind() Kind { return KindSynthesizer }

func (s *Synthesizer) Execute(ctx context.Context, in Input, rctx *Context) (*Result, error) {
	hypotheses, err := rctx.Hypotheses.ListByEngagement(ctx, rctx.EngagementID)
	if err != nil {
		return nil, &PersistError{Op: "load hypotheses", Err: err}
	}

	var contradictions []domain.Contradiction
	if rctx.Contradictions != nil {
		contradictions, err = rctx.Contradictions.ListByEngagement(ctx, rctx.EngagementID)
		if err != nil {
			s.logger.Warn("contradictions unavailable for synthesis", zap.Error(err))
			contradictions = nil
		}
	}

	thesis := strings.TrimSpace(in.Thesis)
	if thesis == "" && rctx.Engagement != nil {
		thesis = strings.TrimSpace(rctx.Engagement.ThesisSummary)
	}
	for _, h := range hypotheses {
		if thesis == "" && h.Type == domain.HypothesisThesis {
			thesis = h.Content
		}
	}

	findings := formatFindings(hypotheses)
	open := openContradictions(contradictions)
	numeric := numericConfidence(hypotheses, len(open))

	verdict := s.synthesize(ctx, thesis, findings, open, numeric)
	return &Result{Verdict: verdict}, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, thesis string, findings, contradictions []string, numeric float32) *domain.SynthesisResult {
	if s.llm != nil {
		v, err := s.llm.Synthesize(ctx, thesis, findings, contradictions)
		if err == nil && v != nil && strings.TrimSpace(v.Summary) != "" {
			v.Confidence = numeric
			return v
		}
		if err != nil {
			s.logger.Warn("synthesis failed, using deterministic verdict", zap.Error(err))
		}
	}

	verdict := &domain.SynthesisResult{
		Summary: fmt.Sprintf(
			"Assessment across %d hypotheses puts weighted confidence at %.2f with %d open contradictions.",
			len(findings), numeric, len(contradictions)),
		Confidence: numeric,
	}
	if len(findings) > 3 {
		verdict.KeyFindings = findings[:3]
	} else {
		verdict.KeyFindings = findings
	}
	if len(contradictions) > 3 {
		verdict.Risks = contradictions[:3]
	} else {
		verdict.Risks = contradictions
	}
	return verdict
}

// formatFindings renders per-hypothesis assessments, most important
// first, for the synthesis prompt and the fallback verdict.
func formatFindings(hypotheses []domain.Hypothesis) []string {
	nodes := make([]domain.Hypothesis, 0, len(hypotheses))
	for _, h := range hypotheses {
		if h.Type == domain.HypothesisThesis {
			continue
		}
		nodes = append(nodes, h)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Importance > nodes[j].Importance
	})
	findings := make([]string, 0, len(nodes))
	for _, h := range nodes {
		findings = append(findings, fmt.Sprintf("%s (status %s, confidence %.2f)", h.Content, h.Status, h.Confidence))
	}
	return findings
}

func openContradictions(contradictions []domain.Contradiction) []string {
	var open []string
	for _, c := range contradictions {
		if c.Status != domain.ContradictionUnresolved && c.Status != domain.ContradictionCritical {
			continue
		}
		open = append(open, fmt.Sprintf("[%s] %s", c.Severity, c.Description))
	}
	return open
}

// numericConfidence aggregates hypothesis confidence weighted by
// importance, then discounts for open contradictions. The root thesis
// node is excluded: its conviction is derived here, not measured.
func numericConfidence(hypotheses []domain.Hypothesis, openContradictions int) float32 {
	var weightSum, acc float64
	for _, h := range hypotheses {
		if h.Type == domain.HypothesisThesis {
			continue
		}
		w := float64(h.Importance)
		if w <= 0 {
			w = 0.5
		}
		weightSum += w
		acc += w * float64(h.Confidence)
	}
	conf := 0.5
	if weightSum > 0 {
		conf = acc / weightSum
	}
	penalty := float64(openContradictions) * contradictionPenalty
	if penalty > maxContradictionPenalty {
		penalty = maxContradictionPenalty
	}
	return clamp01(float32(conf - penalty))
}
