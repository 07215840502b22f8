package research

import (
	"context"
	"fmt"
	"sync"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
)

const (
	// DefaultMaxStep bounds how far one evidence batch can move a
	// hypothesis, so no single gather whipsaws an assessment.
	DefaultMaxStep float32 = 0.15

	// DefaultFlipThreshold is the contradicting-weight ratio above
	// which a supported hypothesis falls back to challenged.
	DefaultFlipThreshold float32 = 0.5
)

// UpdatePolicy tunes the confidence-update step.
type UpdatePolicy struct {
	MaxStep       float32
	FlipThreshold float32
}

func DefaultUpdatePolicy() UpdatePolicy {
	return UpdatePolicy{
		MaxStep:       DefaultMaxStep,
		FlipThreshold: DefaultFlipThreshold,
	}
}

// WeightedSentiment is one evidence item's contribution to an update:
// its classified sentiment weighted by source credibility.
type WeightedSentiment struct {
	Sentiment domain.Sentiment
	Weight    float32
}

// Update records the before and after of one applied batch.
type Update struct {
	HypothesisID  uuid.UUID
	OldConfidence float32
	NewConfidence float32
	OldStatus     domain.HypothesisStatus
	NewStatus     domain.HypothesisStatus
}

// Updater folds evidence batches into hypothesis confidence. Updates
// for the same hypothesis id are serialized through a per-id lock so
// concurrent gathers never interleave a read-modify-write.
type Updater struct {
	policy     UpdatePolicy
	hypotheses domain.HypothesisStore

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewUpdater(hypotheses domain.HypothesisStore, policy UpdatePolicy) *Updater {
	if policy.MaxStep <= 0 {
		policy.MaxStep = DefaultMaxStep
	}
	if policy.FlipThreshold <= 0 {
		policy.FlipThreshold = DefaultFlipThreshold
	}
	return &Updater{
		policy:     policy,
		hypotheses: hypotheses,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (u *Updater) lockFor(id uuid.UUID) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[id]
	if !ok {
		l = &sync.Mutex{}
		u.locks[id] = l
	}
	return l
}

// Apply folds one batch of weighted sentiments into a hypothesis.
// The batch moves confidence by at most MaxStep in either direction
// and may advance the status. Nothing is written when neither value
// changes, and a batch with zero linked weight is a no-op. Refuted
// hypotheses are never reopened here.
func (u *Updater) Apply(ctx context.Context, hypothesisID uuid.UUID, batch []WeightedSentiment) (*Update, bool, error) {
	lock := u.lockFor(hypothesisID)
	lock.Lock()
	defer lock.Unlock()

	var supporting, contradicting, total float64
	for _, ws := range batch {
		if ws.Weight <= 0 {
			continue
		}
		w := float64(ws.Weight)
		total += w
		switch ws.Sentiment {
		case domain.SentimentSupporting:
			supporting += w
		case domain.SentimentContradicting:
			contradicting += w
		}
	}
	if total == 0 {
		return nil, false, nil
	}

	h, err := u.hypotheses.GetByID(ctx, hypothesisID)
	if err != nil {
		return nil, false, fmt.Errorf("load hypothesis: %w", err)
	}
	if h.Status.Terminal() {
		return nil, false, nil
	}

	supportRatio := float32(supporting / total)
	contradictRatio := float32(contradicting / total)
	delta := (supportRatio - contradictRatio) * u.policy.MaxStep
	newConfidence := clamp01(h.Confidence + delta)
	newStatus := u.nextStatus(h.Status, supportRatio, contradictRatio)

	if newConfidence == h.Confidence && newStatus == h.Status {
		return nil, false, nil
	}
	if err := u.hypotheses.UpdateAssessment(ctx, hypothesisID, newConfidence, newStatus); err != nil {
		return nil, false, fmt.Errorf("commit assessment: %w", err)
	}

	return &Update{
		HypothesisID:  hypothesisID,
		OldConfidence: h.Confidence,
		NewConfidence: newConfidence,
		OldStatus:     h.Status,
		NewStatus:     newStatus,
	}, true, nil
}

// nextStatus applies the status transitions. Challenged is sticky:
// only an analyst marking the contradiction explained moves a
// hypothesis out of it.
func (u *Updater) nextStatus(cur domain.HypothesisStatus, supportRatio, contradictRatio float32) domain.HypothesisStatus {
	switch cur {
	case domain.StatusUntested:
		if supportRatio > contradictRatio && supportRatio > 0 {
			return domain.StatusSupported
		}
		if contradictRatio > supportRatio && contradictRatio > 0 {
			return domain.StatusChallenged
		}
	case domain.StatusSupported:
		if contradictRatio > u.policy.FlipThreshold {
			return domain.StatusChallenged
		}
	}
	return cur
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
