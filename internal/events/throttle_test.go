package events

import (
	"sync"
	"testing"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
)

type fakeTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers outside the clock
// lock so callbacks may arm new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(c.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func statusEvent(jobID uuid.UUID, progress int) domain.Event {
	return domain.Event{
		Type:  domain.EventStatusUpdate,
		JobID: jobID,
		Data:  map[string]any{"progress": progress},
	}
}

func importantEvent(jobID uuid.UUID, typ domain.EventType) domain.Event {
	return domain.Event{Type: typ, JobID: jobID}
}

func TestThrottlerDebouncesStatusUpdates(t *testing.T) {
	clock := newFakeClock()
	var sent []domain.Event
	th := NewThrottler(500*time.Millisecond, clock, func(e domain.Event) {
		sent = append(sent, e)
	})

	jobID := uuid.New()
	th.Emit(statusEvent(jobID, 10))
	th.Emit(statusEvent(jobID, 20))
	th.Emit(statusEvent(jobID, 30))

	if len(sent) != 0 {
		t.Fatalf("updates sent before window elapsed: %d", len(sent))
	}

	clock.Advance(500 * time.Millisecond)

	if len(sent) != 1 {
		t.Fatalf("want 1 coalesced update, got %d", len(sent))
	}
	if got := sent[0].Data["progress"]; got != 30 {
		t.Errorf("coalesced update should carry the latest data, got %v", got)
	}
}

func TestThrottlerWindowRunsFromFirstUpdate(t *testing.T) {
	clock := newFakeClock()
	var sent []domain.Event
	th := NewThrottler(500*time.Millisecond, clock, func(e domain.Event) {
		sent = append(sent, e)
	})

	jobID := uuid.New()
	th.Emit(statusEvent(jobID, 10))
	clock.Advance(400 * time.Millisecond)
	th.Emit(statusEvent(jobID, 20))

	// 100ms later the original window elapses; the replacement must not
	// have pushed the deadline out.
	clock.Advance(100 * time.Millisecond)

	if len(sent) != 1 {
		t.Fatalf("want flush at original deadline, got %d events", len(sent))
	}
	if got := sent[0].Data["progress"]; got != 20 {
		t.Errorf("flush should carry replacement data, got %v", got)
	}
}

func TestThrottlerFlushesPendingBeforeImportant(t *testing.T) {
	clock := newFakeClock()
	var sent []domain.Event
	th := NewThrottler(500*time.Millisecond, clock, func(e domain.Event) {
		sent = append(sent, e)
	})

	jobID := uuid.New()
	th.Emit(statusEvent(jobID, 40))
	th.Emit(importantEvent(jobID, domain.EventPhaseComplete))

	if len(sent) != 2 {
		t.Fatalf("want pending update flushed ahead of important event, got %d events", len(sent))
	}
	if sent[0].Type != domain.EventStatusUpdate {
		t.Errorf("first delivered event = %s, want status_update", sent[0].Type)
	}
	if sent[1].Type != domain.EventPhaseComplete {
		t.Errorf("second delivered event = %s, want phase_complete", sent[1].Type)
	}

	// The flushed update must not fire again when the window elapses.
	clock.Advance(time.Second)
	if len(sent) != 2 {
		t.Errorf("stale timer re-sent flushed update: %d events", len(sent))
	}
}

func TestThrottlerImmediateImportantWhenIdle(t *testing.T) {
	clock := newFakeClock()
	var sent []domain.Event
	th := NewThrottler(500*time.Millisecond, clock, func(e domain.Event) {
		sent = append(sent, e)
	})

	th.Emit(importantEvent(uuid.New(), domain.EventEvidenceFound))

	if len(sent) != 1 || sent[0].Type != domain.EventEvidenceFound {
		t.Fatalf("important event should pass straight through, got %v", sent)
	}
}

func TestThrottlerCloseDropsPending(t *testing.T) {
	clock := newFakeClock()
	var sent []domain.Event
	th := NewThrottler(500*time.Millisecond, clock, func(e domain.Event) {
		sent = append(sent, e)
	})

	th.Emit(statusEvent(uuid.New(), 10))
	th.Close()
	clock.Advance(time.Second)

	if len(sent) != 0 {
		t.Errorf("closed throttler sent %d events", len(sent))
	}
}
