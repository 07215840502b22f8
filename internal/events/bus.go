package events

import (
	"sync"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSubscriberCapacity = 100

// Bus fans progress events out to live observers, keyed by job id.
// Subscriber channels are bounded; a slow observer loses its oldest
// debounceable event rather than blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	size   int
	logger *zap.Logger
}

// Subscription is an active observer attachment for one job.
type Subscription struct {
	Events <-chan domain.Event
	cancel func()
}

// Close detaches the observer.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[uuid.UUID]map[*subscriber]struct{}),
		size:   defaultSubscriberCapacity,
		logger: logger,
	}
}

// Subscribe attaches an observer to a job's event stream. Any number
// of observers may attach; each gets its own buffered channel.
func (b *Bus) Subscribe(jobID uuid.UUID) Subscription {
	sub := newSubscriber(b.size, b.logger)

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[*subscriber]struct{})
	}
	b.subs[jobID][sub] = struct{}{}
	b.mu.Unlock()

	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			b.removeSubscriber(jobID, sub)
		},
	}
}

// Publish delivers the event to every observer of its job in arrival
// order. Publishing a terminal event closes the job's stream after
// delivery.
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	subs := b.snapshot(evt.JobID)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(evt)
	}

	if evt.Type.Terminal() {
		b.CloseJob(evt.JobID)
	}
}

// CloseJob closes every observer channel for the job.
func (b *Bus) CloseJob(jobID uuid.UUID) {
	b.mu.Lock()
	subs := b.subs[jobID]
	delete(b.subs, jobID)
	b.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

func (b *Bus) snapshot(jobID uuid.UUID) []*subscriber {
	live := b.subs[jobID]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (b *Bus) removeSubscriber(jobID uuid.UUID, sub *subscriber) {
	b.mu.Lock()
	if subs := b.subs[jobID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subs, jobID)
		}
	}
	b.mu.Unlock()
	sub.close()
}

type subscriber struct {
	ch      chan domain.Event
	logger  *zap.Logger
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int, logger *zap.Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan domain.Event, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan domain.Event {
	return s.ch
}

// deliver never blocks the publisher and never reorders what it keeps.
// A full buffer sheds the incoming event when it is a status update;
// an important event instead evicts the oldest buffered entry.
func (s *subscriber) deliver(evt domain.Event) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- evt:
		return
	default:
	}

	if !evt.Type.Important() {
		s.logDrop(evt)
		return
	}

	select {
	case oldest := <-s.ch:
		s.logDrop(oldest)
	default:
		// Consumer drained the buffer in the meantime.
	}

	select {
	case s.ch <- evt:
	default:
		s.logDrop(evt)
	}
}

func (s *subscriber) logDrop(evt domain.Event) {
	if s.logger == nil {
		return
	}
	s.logger.Warn("dropped event for slow subscriber",
		zap.String("type", string(evt.Type)),
		zap.String("job_id", evt.JobID.String()))
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
