package research

import (
	"context"
	"sync"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/embedding"
	"github.com/convictionhq/conviction/internal/findata"
	"github.com/convictionhq/conviction/internal/llm"
	"github.com/convictionhq/conviction/internal/scoring"
	"github.com/convictionhq/conviction/internal/search"
	"github.com/convictionhq/conviction/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeHypothesisStore struct {
	mu         sync.Mutex
	items      map[uuid.UUID]*domain.Hypothesis
	embeddings map[uuid.UUID][]float32
	order      []uuid.UUID

	createErr   error
	getErr      error
	assessErr   error
	assessments int
}

func newFakeHypothesisStore() *fakeHypothesisStore {
	return &fakeHypothesisStore{
		items:      make(map[uuid.UUID]*domain.Hypothesis),
		embeddings: make(map[uuid.UUID][]float32),
	}
}

func (s *fakeHypothesisStore) Create(ctx context.Context, h *domain.Hypothesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	h.ID = uuid.New()
	now := time.Now()
	h.CreatedAt, h.UpdatedAt = now, now
	if h.Status == "" {
		h.Status = domain.StatusUntested
	}
	cp := *h
	s.items[h.ID] = &cp
	s.order = append(s.order, h.ID)
	if len(h.Embedding) > 0 {
		s.embeddings[h.ID] = h.Embedding
	}
	return nil
}

func (s *fakeHypothesisStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	h, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *fakeHypothesisStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Hypothesis
	for _, id := range s.order {
		h := s.items[id]
		if h.EngagementID == engagementID {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (s *fakeHypothesisStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Hypothesis
	for _, id := range s.order {
		if want[id] {
			out = append(out, *s.items[id])
		}
	}
	return out, nil
}

func (s *fakeHypothesisStore) Update(ctx context.Context, h *domain.Hypothesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[h.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Content = h.Content
	cur.Confidence = h.Confidence
	cur.Status = h.Status
	cur.Importance = h.Importance
	cur.Testability = h.Testability
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *fakeHypothesisStore) UpdateAssessment(ctx context.Context, id uuid.UUID, confidence float32, status domain.HypothesisStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assessErr != nil {
		return s.assessErr
	}
	h, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	h.Confidence = confidence
	h.Status = status
	h.UpdatedAt = time.Now()
	s.assessments++
	return nil
}

func (s *fakeHypothesisStore) UpdateEmbedding(ctx context.Context, id uuid.UUID, emb []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	s.embeddings[id] = emb
	return nil
}

func (s *fakeHypothesisStore) GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return nil, store.ErrNotFound
	}
	return s.embeddings[id], nil
}

type fakeEdgeStore struct {
	mu    sync.Mutex
	edges []domain.HypothesisEdge
}

func newFakeEdgeStore() *fakeEdgeStore { return &fakeEdgeStore{} }

func (s *fakeEdgeStore) Create(ctx context.Context, e *domain.HypothesisEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	s.edges = append(s.edges, *e)
	return nil
}

func (s *fakeEdgeStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]domain.HypothesisEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HypothesisEdge
	for _, e := range s.edges {
		if e.EngagementID == engagementID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeContentStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Evidence
	byHash  map[string]uuid.UUID
	order   []uuid.UUID
	similar []domain.EvidenceWithScore

	upsertErr error
	upserts   int
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		byID:   make(map[uuid.UUID]*domain.Evidence),
		byHash: make(map[string]uuid.UUID),
	}
}

func (s *fakeContentStore) UpsertEvidence(ctx context.Context, e *domain.Evidence) (*domain.Evidence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return nil, false, s.upsertErr
	}
	key := e.EngagementID.String() + ":" + e.ContentHash
	if id, ok := s.byHash[key]; ok {
		cp := *s.byID[id]
		return &cp, false, nil
	}
	e.ID = uuid.New()
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Sentiment == "" {
		e.Sentiment = domain.SentimentNeutral
	}
	cp := *e
	s.byID[e.ID] = &cp
	s.byHash[key] = e.ID
	s.order = append(s.order, e.ID)
	return e, true, nil
}

func (s *fakeContentStore) GetEvidence(ctx context.Context, id uuid.UUID) (*domain.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeContentStore) SearchSimilar(ctx context.Context, engagementID uuid.UUID, embedding []float32, limit int) ([]domain.EvidenceWithScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.similar
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeContentStore) CountByEngagement(ctx context.Context, engagementID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, id := range s.order {
		if s.byID[id].EngagementID == engagementID {
			count++
		}
	}
	return count, nil
}

type fakeEvidenceStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Evidence
	order []uuid.UUID

	createErr error
}

func newFakeEvidenceStore() *fakeEvidenceStore {
	return &fakeEvidenceStore{items: make(map[uuid.UUID]*domain.Evidence)}
}

func (s *fakeEvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if cur, ok := s.items[e.ID]; ok {
		cur.Sentiment = e.Sentiment
		cur.Source.CredibilityScore = e.Source.CredibilityScore
		cur.Relevance = e.Relevance
		cur.UpdatedAt = time.Now()
		return nil
	}
	cp := *e
	s.items[e.ID] = &cp
	s.order = append(s.order, e.ID)
	return nil
}

func (s *fakeEvidenceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeEvidenceStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]domain.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Evidence
	for _, id := range s.order {
		e := s.items[id]
		if e.EngagementID != engagementID {
			continue
		}
		out = append(out, *e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeEvidenceStore) ListByHypothesis(ctx context.Context, hypothesisID uuid.UUID) ([]domain.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Evidence
	for _, id := range s.order {
		e := s.items[id]
		for _, hid := range e.Relevance.HypothesisIDs {
			if hid == hypothesisID {
				out = append(out, *e)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeEvidenceStore) UpdateReview(ctx context.Context, id uuid.UUID, sentiment domain.Sentiment, credibility float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Sentiment = sentiment
	e.Source.CredibilityScore = credibility
	e.UpdatedAt = time.Now()
	return nil
}

type fakeContradictionStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Contradiction
	order []uuid.UUID

	createErr error
}

func newFakeContradictionStore() *fakeContradictionStore {
	return &fakeContradictionStore{items: make(map[uuid.UUID]*domain.Contradiction)}
}

func (s *fakeContradictionStore) Create(ctx context.Context, c *domain.Contradiction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	c.ID = uuid.New()
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = domain.ContradictionUnresolved
	}
	cp := *c
	s.items[c.ID] = &cp
	s.order = append(s.order, c.ID)
	return nil
}

func (s *fakeContradictionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contradiction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeContradictionStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]domain.Contradiction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Contradiction
	for _, id := range s.order {
		c := s.items[id]
		if c.EngagementID == engagementID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeContradictionStore) ListByHypothesis(ctx context.Context, hypothesisID uuid.UUID) ([]domain.Contradiction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Contradiction
	for _, id := range s.order {
		c := s.items[id]
		if c.HypothesisID != nil && *c.HypothesisID == hypothesisID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeContradictionStore) CountUnresolved(ctx context.Context, engagementID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, id := range s.order {
		c := s.items[id]
		if c.EngagementID == engagementID &&
			(c.Status == domain.ContradictionUnresolved || c.Status == domain.ContradictionCritical) {
			count++
		}
	}
	return count, nil
}

func (s *fakeContradictionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ContradictionStatus, resolution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	c.Resolution = resolution
	now := time.Now()
	c.ResolvedAt = &now
	c.UpdatedAt = now
	return nil
}

// researchEnv wires the package under test against the in-memory
// stores and the provider mocks, the same shape the conductor builds
// in production.
type researchEnv struct {
	engagement     *domain.Engagement
	hypotheses     *fakeHypothesisStore
	edges          *fakeEdgeStore
	content        *fakeContentStore
	evidence       *fakeEvidenceStore
	contradictions *fakeContradictionStore

	llm      *llm.MockClient
	search   *search.MockClient
	findata  *findata.MockClient
	embedder *embedding.MockClient

	updater  *Updater
	gatherer *Gatherer

	mu     sync.Mutex
	events []domain.Event
}

func newResearchEnv() *researchEnv {
	env := &researchEnv{
		engagement: &domain.Engagement{
			ID:                uuid.New(),
			TargetCompanyName: "Northstar Robotics",
			TickerSymbol:      "NSTR",
			Sector:            "Industrial Automation",
			ThesisSummary:     "Northstar Robotics compounds revenue above 25% as factories automate inspection work",
		},
		hypotheses:     newFakeHypothesisStore(),
		edges:          newFakeEdgeStore(),
		content:        newFakeContentStore(),
		evidence:       newFakeEvidenceStore(),
		contradictions: newFakeContradictionStore(),
		llm:            llm.NewMockClient(),
		search:         search.NewMockClient(),
		findata:        findata.NewMockClient(),
		embedder:       embedding.NewMockClient(),
	}
	env.updater = NewUpdater(env.hypotheses, DefaultUpdatePolicy())
	env.gatherer = NewGatherer(env.search, env.findata, env.llm, env.embedder,
		testScorer(), env.updater, zap.NewNop())
	return env
}

func (e *researchEnv) context() *Context {
	return &Context{
		EngagementID:   e.engagement.ID,
		Engagement:     e.engagement,
		Hypotheses:     e.hypotheses,
		Edges:          e.edges,
		Content:        e.content,
		Evidence:       e.evidence,
		Contradictions: e.contradictions,
		Emit:           e.recordEvent,
	}
}

func (e *researchEnv) recordEvent(evt domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *researchEnv) eventsOf(t domain.EventType) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, evt := range e.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// addHypothesis seeds one stored node and returns it.
func (e *researchEnv) addHypothesis(t domain.HypothesisType, content string, confidence float32, status domain.HypothesisStatus) domain.Hypothesis {
	h := domain.Hypothesis{
		EngagementID: e.engagement.ID,
		Type:         t,
		Content:      content,
		Confidence:   confidence,
		Status:       status,
		Importance:   0.8,
		Testability:  0.8,
	}
	if vec, err := e.embedder.Embed(context.Background(), content); err == nil {
		h.Embedding = vec
	}
	if err := e.hypotheses.Create(context.Background(), &h); err != nil {
		panic(err)
	}
	return h
}

// testScorer is deterministic: no jitter, fixed clock.
func testScorer() *scoring.Scorer {
	now := time.Now()
	return scoring.NewScorer(nil).
		WithJitterSource(func() float32 { return 0 }).
		WithClock(func() time.Time { return now })
}
