package event

import "sync"

// Handler consumes a published event.
type Handler func(Event)

// Bus fans committed events out to subscribers. Delivery is fire-and-forget:
// the publishing transaction never waits on a subscriber, and a slow or
// failing subscriber cannot block bidding. Each subscriber drains its own
// FIFO queue, so every subscriber sees events in publish order even across
// successive Publish calls.
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	wg          sync.WaitGroup
}

type subscriber struct {
	h Handler

	mu       sync.Mutex
	queue    []Event
	draining bool
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequently published events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, &subscriber{h: h})
}

// Publish enqueues events for every subscriber and returns immediately.
func (b *Bus) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	subs := make([]*subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subs {
		b.wg.Add(len(events))
		s.enqueue(events, &b.wg)
	}
}

func (s *subscriber) enqueue(events []Event, wg *sync.WaitGroup) {
	s.mu.Lock()
	s.queue = append(s.queue, events...)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	go s.drain(wg)
}

// drain delivers queued events one at a time and exits once the queue is
// empty, leaving the subscriber idle until the next enqueue.
func (s *subscriber) drain(wg *sync.WaitGroup) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.h(e)
		wg.Done()
	}
}

// Wait blocks until all in-flight deliveries finish. For tests and shutdown.
func (b *Bus) Wait() {
	b.wg.Wait()
}
