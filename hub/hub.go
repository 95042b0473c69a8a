// Package hub provides a single-process publish/subscribe router. One
// topic, many subscribers, each with its own ordered event sequence.
//
// Buffering policy: every subscriber owns an unbounded pending queue, so
// Publish never blocks and a slow consumer never affects delivery to the
// others. Memory use is bounded only by subscriber lag; events missed
// before Subscribe are not replayed.
package hub

import (
	"log/slog"
	"sync"

	"github.com/arnellebalane/instagram-graphql/errors"
)

// Hub routes published events to every active subscriber
type Hub[T any] struct {
	mu          sync.Mutex
	subscribers map[*Subscription[T]]struct{}
	closed      bool
	logger      *slog.Logger
}

// New creates an empty hub
func New[T any](logger *slog.Logger) *Hub[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		logger:      logger.With("component", "hub"),
	}
}

// Subscribe registers a fresh subscriber. The returned subscription
// observes every event published after this call, in publish order,
// until it is closed.
func (h *Hub[T]) Subscribe() (*Subscription[T], error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.WrapFatal(errors.ErrShuttingDown, "Hub", "Subscribe", "register subscriber")
	}

	sub := &Subscription[T]{
		hub:    h,
		out:    make(chan T),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	h.subscribers[sub] = struct{}{}

	go sub.forward()

	h.logger.Debug("subscriber added", "subscribers", len(h.subscribers))
	return sub, nil
}

// Publish delivers the event to every currently-active subscriber and
// returns how many received it. Subscriber queues are unbounded, so this
// never blocks on consumers.
func (h *Hub[T]) Publish(event T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		sub.enqueue(event)
	}
	return len(h.subscribers)
}

// SubscriberCount returns the number of active subscribers
func (h *Hub[T]) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close shuts the hub down and closes every remaining subscription.
// Publishes after Close are dropped.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription[T], 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*Subscription[T]]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

// remove detaches a subscription; publishes after removal are silently
// dropped for that subscriber
func (h *Hub[T]) remove(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}

// Subscription is one subscriber's independent live event sequence
type Subscription[T any] struct {
	hub *Hub[T]
	out chan T

	mu    sync.Mutex
	queue []T

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// C returns the channel events are delivered on. The channel is closed
// when the subscription is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Close unsubscribes and releases the pending queue. Idempotent, and a
// normal exit path rather than a failure: concurrent publishes are
// silently dropped once removal completes.
func (s *Subscription[T]) Close() {
	s.hub.remove(s)
	s.stop()
}

func (s *Subscription[T]) stop() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// enqueue appends an event to the pending queue and nudges the forwarder
func (s *Subscription[T]) enqueue(event T) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// forward drains the pending queue into the delivery channel, preserving
// publish order, until the subscription is closed
func (s *Subscription[T]) forward() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
		case <-s.done:
			return
		}
	}
}
