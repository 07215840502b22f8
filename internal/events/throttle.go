package events

import (
	"sync"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
)

// DefaultThrottleWindow is the debounce window for status updates.
const DefaultThrottleWindow = 500 * time.Millisecond

// Clock abstracts the timer primitive so the debounce machine can be
// driven by a fake clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return systemClock{} }

// Throttler debounces status_update events in front of an event sink.
// It is a two-state machine: idle, or holding one pending update with
// an armed deadline. A status update arriving while one is pending
// replaces it; the pending update is sent when the window elapses or,
// to preserve arrival order, immediately before any important event.
type Throttler struct {
	mu      sync.Mutex
	out     func(domain.Event)
	window  time.Duration
	clock   Clock
	pending *domain.Event
	timer   Timer
}

func NewThrottler(window time.Duration, clock Clock, out func(domain.Event)) *Throttler {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Throttler{
		out:    out,
		window: window,
		clock:  clock,
	}
}

// Emit feeds one event into the machine.
func (t *Throttler) Emit(evt domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if evt.Type.Important() {
		t.flushLocked()
		t.out(evt)
		return
	}

	// Debounceable update: hold it. The window runs from the first
	// update that entered the pending state, so a replacement does not
	// push the flush out further.
	replaced := t.pending != nil
	t.pending = &evt
	if !replaced {
		t.timer = t.clock.AfterFunc(t.window, t.timerFired)
	}
}

// Flush sends any held update immediately.
func (t *Throttler) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked()
}

// Close stops the timer and drops any held update without sending it.
func (t *Throttler) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
}

func (t *Throttler) timerFired() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = nil
	if t.pending != nil {
		t.out(*t.pending)
		t.pending = nil
	}
}

func (t *Throttler) flushLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.pending != nil {
		t.out(*t.pending)
		t.pending = nil
	}
}
