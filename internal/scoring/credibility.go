package scoring

import (
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
)

const (
	// DefaultJitterBound bounds the random tie-breaking jitter applied
	// to every score.
	DefaultJitterBound = 0.02
	// DefaultDecayMax is the largest recency penalty an aged item takes.
	DefaultDecayMax = 0.15
	// DefaultFreshFor is how long an item keeps its full score.
	DefaultFreshFor = 30 * 24 * time.Hour
	// DefaultStaleAfter is the age at which the full decay applies.
	DefaultStaleAfter = 365 * 24 * time.Hour

	auditKeywordBoost   = 0.10
	draftKeywordPenalty = 0.15
)

// SourceMeta is the scorable description of where an item came from.
type SourceMeta struct {
	Type        domain.SourceType
	URL         string
	Title       string
	Filename    string
	PublishedAt *time.Time
}

// Scorer computes credibility scores for evidence items. Scores are
// deterministic given their inputs apart from the documented bounded
// jitter, which exists to break ties between near-identical items.
type Scorer struct {
	reputation map[string]float32
	jitter     func() float32
	now        func() time.Time

	JitterBound float32
	DecayMax    float32
	FreshFor    time.Duration
	StaleAfter  time.Duration
}

func NewScorer(reputation map[string]float32) *Scorer {
	s := &Scorer{
		reputation:  defaultReputation(),
		JitterBound: DefaultJitterBound,
		DecayMax:    DefaultDecayMax,
		FreshFor:    DefaultFreshFor,
		StaleAfter:  DefaultStaleAfter,
		now:         time.Now,
	}
	s.jitter = func() float32 {
		return (rand.Float32()*2 - 1) * s.JitterBound
	}
	for host, adj := range reputation {
		s.reputation[strings.ToLower(host)] = adj
	}
	return s
}

// WithJitterSource replaces the jitter source. Tests inject a fixed
// source to make scores fully deterministic.
func (s *Scorer) WithJitterSource(jitter func() float32) *Scorer {
	s.jitter = jitter
	return s
}

// WithClock replaces the recency reference clock.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Score returns a [0,1] credibility estimate for an item: the source
// type's base trust, adjusted for recency, domain reputation and
// document keyword signals, jittered, then clamped to the source
// type's floor and ceiling.
func (s *Scorer) Score(meta SourceMeta, content string) float32 {
	score := meta.Type.BaseCredibility()

	score -= s.recencyPenalty(meta.PublishedAt)
	score += s.domainAdjustment(meta.URL)
	score += s.keywordAdjustment(meta)
	score += s.jitter()

	min, max := meta.Type.CredibilityRange()
	return clamp(score, min, max)
}

func (s *Scorer) recencyPenalty(publishedAt *time.Time) float32 {
	if publishedAt == nil {
		return 0
	}

	age := s.now().Sub(*publishedAt)
	if age <= s.FreshFor {
		return 0
	}
	if age >= s.StaleAfter {
		return s.DecayMax
	}

	frac := float32(age-s.FreshFor) / float32(s.StaleAfter-s.FreshFor)
	return s.DecayMax * frac
}

func (s *Scorer) domainAdjustment(rawURL string) float32 {
	if rawURL == "" {
		return 0
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return 0
	}

	if adj, ok := s.reputation[host]; ok {
		return adj
	}
	if adj, ok := s.reputation[strings.TrimPrefix(host, "www.")]; ok {
		return adj
	}
	return 0
}

// keywordAdjustment applies filename and title signals for internal
// documents: audited material gains trust, drafts lose it.
func (s *Scorer) keywordAdjustment(meta SourceMeta) float32 {
	if meta.Type != domain.SourceInternalDocument {
		return 0
	}

	name := strings.ToLower(meta.Filename + " " + meta.Title)
	var adj float32
	if strings.Contains(name, "audit") {
		adj += auditKeywordBoost
	}
	if strings.Contains(name, "draft") {
		adj -= draftKeywordPenalty
	}
	return adj
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
