package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HypothesisNode is one rendered node of the finished hypothesis tree.
type HypothesisNode struct {
	ID         uuid.UUID               `json:"id"`
	Type       domain.HypothesisType   `json:"type"`
	Content    string                  `json:"content"`
	Confidence float32                 `json:"confidence"`
	Status     domain.HypothesisStatus `json:"status"`
	Importance float32                 `json:"importance"`
	Children   []HypothesisNode        `json:"children,omitempty"`
}

// EvidenceSummary aggregates what the gathering phases produced.
type EvidenceSummary struct {
	Total       int            `json:"total"`
	BySource    map[string]int `json:"by_source,omitempty"`
	BySentiment map[string]int `json:"by_sentiment,omitempty"`
	Queries     []string       `json:"queries,omitempty"`
}

// ContradictionsSummary aggregates the run's filed contradictions.
type ContradictionsSummary struct {
	Total      int            `json:"total"`
	Unresolved int            `json:"unresolved"`
	BySeverity map[string]int `json:"by_severity,omitempty"`
}

// WorkflowResult is the durable outcome of one research run. It is
// serialized into the job's results column.
type WorkflowResult struct {
	HypothesisTree        []HypothesisNode        `json:"hypothesis_tree"`
	EvidenceSummary       EvidenceSummary         `json:"evidence_summary"`
	ContradictionsSummary ContradictionsSummary   `json:"contradictions_summary"`
	Comparables           []ComparableSummary     `json:"comparables,omitempty"`
	Verdict               *domain.SynthesisResult `json:"verdict,omitempty"`
	Confidence            float32                 `json:"confidence"`
	ExecutionTimeMs       int64                   `json:"execution_time_ms"`
}

// Scenario is one hypothesis put under adversarial pressure.
type Scenario struct {
	HypothesisID   uuid.UUID `json:"hypothesis_id"`
	Hypothesis     string    `json:"hypothesis"`
	Contradictions int       `json:"contradictions"`
	MaxSeverity    string    `json:"max_severity,omitempty"`
}

// Vulnerability is one contradiction surfaced by a stress test.
type Vulnerability struct {
	HypothesisID uuid.UUID       `json:"hypothesis_id"`
	Hypothesis   string          `json:"hypothesis"`
	Severity     domain.Severity `json:"severity"`
	Description  string          `json:"description"`
	EvidenceID   *uuid.UUID      `json:"evidence_id,omitempty"`
}

// StressResult is the durable outcome of one stress-test run.
type StressResult struct {
	Scenarios        []Scenario      `json:"scenarios"`
	Vulnerabilities  []Vulnerability `json:"vulnerabilities"`
	OverallRiskScore float32         `json:"overall_risk_score"`
	ExecutionTimeMs  int64           `json:"execution_time_ms"`
}

// phase is one step of a workflow: a name for events, the progress
// value persisted once it completes, the work itself, and the counts
// reported on completion.
type phase struct {
	name     string
	progress int
	run      func(ctx context.Context) error
	counts   func() map[string]any
}

// Conductor sequences workers into workflows. Research runs structure
// the thesis, scan comparables, gather evidence per hypothesis, hunt
// contradictions and synthesize a verdict; stress tests run only the
// adversarial portion against chosen hypotheses. A phase error aborts
// everything after it: the job fails with the captured message rather
// than reporting a partial run as complete.
type Conductor struct {
	workers        map[Kind]Worker
	bus            *events.Bus
	jobs           domain.JobStore
	hypotheses     domain.HypothesisStore
	edges          domain.EdgeStore
	content        domain.ContentStore
	evidence       domain.EvidenceStore
	contradictions domain.ContradictionStore
	logger         *zap.Logger

	// ThrottleWindow debounces status updates on the event stream.
	ThrottleWindow time.Duration
}

func NewConductor(
	workers []Worker,
	bus *events.Bus,
	jobs domain.JobStore,
	hypotheses domain.HypothesisStore,
	edges domain.EdgeStore,
	content domain.ContentStore,
	evidence domain.EvidenceStore,
	contradictions domain.ContradictionStore,
	logger *zap.Logger,
) *Conductor {
	registry := make(map[Kind]Worker, len(workers))
	for _, w := range workers {
		registry[w.Kind()] = w
	}
	return &Conductor{
		workers:        registry,
		bus:            bus,
		jobs:           jobs,
		hypotheses:     hypotheses,
		edges:          edges,
		content:        content,
		evidence:       evidence,
		contradictions: contradictions,
		logger:         logger,
		ThrottleWindow: events.DefaultThrottleWindow,
	}
}

func (c *Conductor) ExecuteResearch(ctx context.Context, job *domain.ResearchJob, engagement *domain.Engagement) (*WorkflowResult, error) {
	start := time.Now()
	emit, flush := c.emitter(job.ID)
	defer flush()
	rctx := c.workerContext(engagement, emit)
	in := inputFromConfig(job.Config, engagement)

	var (
		tree           []domain.Hypothesis
		comparables    []ComparableSummary
		evidence       []domain.Evidence
		contradictions []domain.Contradiction
		verdict        *domain.SynthesisResult
		sourceSummary  = make(map[string]int)
		searchQueries  []string
	)

	phases := []phase{
		{
			name:     "thesis_structuring",
			progress: 20,
			run: func(ctx context.Context) error {
				w, err := c.worker(KindHypothesisBuilder)
				if err != nil {
					return err
				}
				res, err := w.Execute(ctx, in, rctx)
				if err != nil {
					return err
				}
				tree = res.Hypotheses
				return nil
			},
			counts: func() map[string]any { return map[string]any{"hypotheses": len(tree)} },
		},
		{
			name:     "comparable_search",
			progress: 35,
			run: func(ctx context.Context) error {
				w, err := c.worker(KindComparablesFinder)
				if err != nil {
					return err
				}
				res, err := w.Execute(ctx, in, rctx)
				if err != nil {
					return err
				}
				comparables = res.Comparables
				searchQueries = append(searchQueries, res.SearchQueries...)
				return nil
			},
			counts: func() map[string]any { return map[string]any{"comparables": len(comparables)} },
		},
		{
			name:     "evidence_gathering",
			progress: 65,
			run: func(ctx context.Context) error {
				targets := gatherTargets(tree, in.HypothesisIDs)
				return c.gatherAll(ctx, in, rctx, targets, &evidence, sourceSummary, &searchQueries)
			},
			counts: func() map[string]any { return map[string]any{"evidence": len(evidence)} },
		},
		{
			name:     "contradiction_analysis",
			progress: 85,
			run: func(ctx context.Context) error {
				w, err := c.worker(KindContradictionHunter)
				if err != nil {
					return err
				}
				res, err := w.Execute(ctx, in, rctx)
				if err != nil {
					return err
				}
				contradictions = res.Contradictions
				evidence = append(evidence, res.Evidence...)
				searchQueries = append(searchQueries, res.SearchQueries...)
				return nil
			},
			counts: func() map[string]any { return map[string]any{"contradictions": len(contradictions)} },
		},
		{
			name:     "synthesis",
			progress: 95,
			run: func(ctx context.Context) error {
				w, err := c.worker(KindSynthesizer)
				if err != nil {
					return err
				}
				res, err := w.Execute(ctx, in, rctx)
				if err != nil {
					return err
				}
				verdict = res.Verdict
				return nil
			},
			counts: func() map[string]any {
				if verdict == nil {
					return nil
				}
				return map[string]any{"confidence": verdict.Confidence}
			},
		},
	}

	if err := c.runPhases(ctx, job.ID, emit, phases); err != nil {
		return nil, err
	}

	// Snapshot the tree after the run so the result reflects the moved
	// confidences, not the build-time priors.
	final, err := c.hypotheses.ListByEngagement(ctx, engagement.ID)
	if err != nil {
		c.logger.Warn("final tree snapshot failed, using build-time nodes", zap.Error(err))
		final = tree
	}

	result := &WorkflowResult{
		HypothesisTree:        buildTree(final),
		EvidenceSummary:       summarizeEvidence(evidence, sourceSummary, dedupeStrings(searchQueries)),
		ContradictionsSummary: summarizeContradictions(contradictions),
		Comparables:           comparables,
		Verdict:               verdict,
		ExecutionTimeMs:       time.Since(start).Milliseconds(),
	}
	if verdict != nil {
		result.Confidence = verdict.Confidence
	}
	return result, nil
}

func (c *Conductor) ExecuteStressTest(ctx context.Context, job *domain.ResearchJob, engagement *domain.Engagement) (*StressResult, error) {
	start := time.Now()
	emit, flush := c.emitter(job.ID)
	defer flush()
	rctx := c.workerContext(engagement, emit)
	in := inputFromConfig(job.Config, engagement)

	var (
		targets []domain.Hypothesis
		res     *Result
	)

	phases := []phase{
		{
			name:     "target_selection",
			progress: 15,
			run: func(ctx context.Context) error {
				var err error
				targets, err = c.stressTargets(ctx, engagement.ID, in.HypothesisIDs)
				if err != nil {
					return err
				}
				if len(targets) == 0 {
					return &ValidationError{Field: "hypothesis_ids", Reason: "no testable hypotheses to stress"}
				}
				return nil
			},
			counts: func() map[string]any { return map[string]any{"targets": len(targets)} },
		},
		{
			name:     "adversarial_search",
			progress: 85,
			run: func(ctx context.Context) error {
				w, err := c.worker(KindContradictionHunter)
				if err != nil {
					return err
				}
				hunted, err := w.Execute(ctx, withTargets(in, targets), rctx)
				if err != nil {
					return err
				}
				res = hunted
				return nil
			},
			counts: func() map[string]any {
				if res == nil {
					return nil
				}
				return map[string]any{"contradictions": len(res.Contradictions)}
			},
		},
	}

	if err := c.runPhases(ctx, job.ID, emit, phases); err != nil {
		return nil, err
	}

	result := assembleStress(targets, res.Contradictions)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// runPhases drives one workflow's phase list. Cancellation is checked
// at every boundary and a failing phase wraps into a WorkflowError so
// the caller records which phase died.
func (c *Conductor) runPhases(ctx context.Context, jobID uuid.UUID, emit func(domain.Event), phases []phase) error {
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return &WorkflowError{Phase: p.name, Err: err}
		}
		emit(domain.Event{Type: domain.EventPhaseStart, Data: map[string]any{"phase": p.name}})
		if err := p.run(ctx); err != nil {
			return &WorkflowError{Phase: p.name, Err: err}
		}

		data := map[string]any{"phase": p.name}
		if p.counts != nil {
			for k, v := range p.counts() {
				data[k] = v
			}
		}
		emit(domain.Event{Type: domain.EventPhaseComplete, Data: data})
		emit(domain.Event{Type: domain.EventStatusUpdate, Data: map[string]any{
			"kind":     "progress",
			"phase":    p.name,
			"progress": p.progress,
		}})
		if c.jobs != nil {
			if err := c.jobs.UpdateProgress(ctx, jobID, p.progress); err != nil {
				c.logger.Warn("progress not persisted",
					zap.String("job_id", jobID.String()), zap.Error(err))
			}
		}
	}
	return nil
}

// gatherAll fans the evidence gatherer out across the target
// hypotheses. Each gather tests one node; per-node confidence updates
// stay serialized inside the updater.
func (c *Conductor) gatherAll(ctx context.Context, in Input, rctx *Context, targets []domain.Hypothesis, evidence *[]domain.Evidence, sourceSummary map[string]int, searchQueries *[]string) error {
	w, err := c.worker(KindEvidenceGatherer)
	if err != nil {
		return err
	}
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxHypothesisFanOut)
	for i := range targets {
		h := targets[i]
		eg.Go(func() error {
			res, err := w.Execute(egCtx, Input{
				Thesis:         in.Thesis,
				Query:          h.Content,
				HypothesisIDs:  []uuid.UUID{h.ID},
				Sources:        in.Sources,
				MaxResults:     in.MaxResults,
				MinCredibility: in.MinCredibility,
				Intensity:      in.Intensity,
			}, rctx)
			if err != nil {
				return err
			}
			mu.Lock()
			*evidence = append(*evidence, res.Evidence...)
			*searchQueries = append(*searchQueries, res.SearchQueries...)
			for k, v := range res.SourceSummary {
				sourceSummary[k] += v
			}
			mu.Unlock()
			return nil
		})
	}
	return eg.Wait()
}

func (c *Conductor) stressTargets(ctx context.Context, engagementID uuid.UUID, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	if len(ids) > 0 {
		targets, err := c.hypotheses.ListByIDs(ctx, ids)
		if err != nil {
			return nil, &PersistError{Op: "load hypotheses", Err: err}
		}
		return filterTestable(targets), nil
	}
	all, err := c.hypotheses.ListByEngagement(ctx, engagementID)
	if err != nil {
		return nil, &PersistError{Op: "load hypotheses", Err: err}
	}
	return filterTestable(all), nil
}

// emitter builds the per-job event pipeline: stamp job id and time,
// debounce status updates, publish to the bus. flush must run before
// the caller reports a terminal state so held updates precede it.
func (c *Conductor) emitter(jobID uuid.UUID) (emit func(domain.Event), flush func()) {
	sink := func(domain.Event) {}
	if c.bus != nil {
		sink = c.bus.Publish
	}
	throttler := events.NewThrottler(c.ThrottleWindow, nil, sink)
	emit = func(evt domain.Event) {
		evt.JobID = jobID
		evt.Timestamp = time.Now().UTC()
		throttler.Emit(evt)
	}
	return emit, throttler.Flush
}

func (c *Conductor) workerContext(engagement *domain.Engagement, emit func(domain.Event)) *Context {
	rctx := &Context{
		Engagement:     engagement,
		Hypotheses:     c.hypotheses,
		Edges:          c.edges,
		Content:        c.content,
		Evidence:       c.evidence,
		Contradictions: c.contradictions,
		Emit:           emit,
	}
	if engagement != nil {
		rctx.EngagementID = engagement.ID
	}
	return rctx
}

func (c *Conductor) worker(kind Kind) (Worker, error) {
	w, ok := c.workers[kind]
	if !ok {
		return nil, fmt.Errorf("no worker registered for kind %q", kind)
	}
	return w, nil
}

func inputFromConfig(cfg domain.JobConfig, engagement *domain.Engagement) Input {
	in := Input{
		Thesis:         cfg.Thesis,
		MaxResults:     cfg.MaxResults,
		MinCredibility: cfg.MinCredibility,
		Sources:        cfg.Sources,
		Intensity:      cfg.Intensity,
		HypothesisIDs:  cfg.HypothesisIDs,
	}
	if in.Thesis == "" && engagement != nil {
		in.Thesis = engagement.ThesisSummary
	}
	return in
}

// gatherTargets narrows the built tree to the nodes this run should
// test: the config's subset when given, otherwise every testable node.
func gatherTargets(tree []domain.Hypothesis, ids []uuid.UUID) []domain.Hypothesis {
	targets := filterTestable(tree)
	if len(ids) == 0 {
		return targets
	}
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]domain.Hypothesis, 0, len(targets))
	for _, h := range targets {
		if want[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

func withTargets(in Input, targets []domain.Hypothesis) Input {
	ids := make([]uuid.UUID, 0, len(targets))
	for _, h := range targets {
		ids = append(ids, h.ID)
	}
	in.HypothesisIDs = ids
	return in
}

func buildTree(nodes []domain.Hypothesis) []HypothesisNode {
	children := make(map[uuid.UUID][]domain.Hypothesis)
	var roots []domain.Hypothesis
	for _, h := range nodes {
		if h.ParentID == nil {
			roots = append(roots, h)
		} else {
			children[*h.ParentID] = append(children[*h.ParentID], h)
		}
	}
	var build func(h domain.Hypothesis) HypothesisNode
	build = func(h domain.Hypothesis) HypothesisNode {
		node := HypothesisNode{
			ID:         h.ID,
			Type:       h.Type,
			Content:    h.Content,
			Confidence: h.Confidence,
			Status:     h.Status,
			Importance: h.Importance,
		}
		for _, child := range children[h.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	out := make([]HypothesisNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

func summarizeEvidence(evidence []domain.Evidence, bySource map[string]int, queries []string) EvidenceSummary {
	summary := EvidenceSummary{
		Total:    len(evidence),
		BySource: bySource,
		Queries:  queries,
	}
	if len(evidence) > 0 {
		summary.BySentiment = make(map[string]int, 3)
		for _, e := range evidence {
			summary.BySentiment[string(e.Sentiment)]++
		}
	}
	return summary
}

func summarizeContradictions(contradictions []domain.Contradiction) ContradictionsSummary {
	summary := ContradictionsSummary{Total: len(contradictions)}
	if len(contradictions) > 0 {
		summary.BySeverity = make(map[string]int, 3)
	}
	for _, con := range contradictions {
		summary.BySeverity[string(con.Severity)]++
		if con.Status == domain.ContradictionUnresolved || con.Status == domain.ContradictionCritical {
			summary.Unresolved++
		}
	}
	return summary
}

func assembleStress(targets []domain.Hypothesis, contradictions []domain.Contradiction) *StressResult {
	byHypothesis := make(map[uuid.UUID][]domain.Contradiction)
	for _, con := range contradictions {
		if con.HypothesisID == nil {
			continue
		}
		byHypothesis[*con.HypothesisID] = append(byHypothesis[*con.HypothesisID], con)
	}

	result := &StressResult{
		Scenarios:       make([]Scenario, 0, len(targets)),
		Vulnerabilities: make([]Vulnerability, 0, len(contradictions)),
	}
	var totalRank int
	for _, h := range targets {
		cons := byHypothesis[h.ID]
		scenario := Scenario{
			HypothesisID:   h.ID,
			Hypothesis:     h.Content,
			Contradictions: len(cons),
		}
		maxRank := 0
		for _, con := range cons {
			if r := con.Severity.Rank(); r > maxRank {
				maxRank = r
				scenario.MaxSeverity = string(con.Severity)
			}
			totalRank += con.Severity.Rank()
			result.Vulnerabilities = append(result.Vulnerabilities, Vulnerability{
				HypothesisID: h.ID,
				Hypothesis:   h.Content,
				Severity:     con.Severity,
				Description:  con.Description,
				EvidenceID:   con.EvidenceID,
			})
		}
		result.Scenarios = append(result.Scenarios, scenario)
	}
	if len(targets) > 0 {
		result.OverallRiskScore = clamp01(float32(totalRank) / float32(3*len(targets)))
	}
	return result
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
