package queue

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Topics.
const (
	TopicAuthState     = "auth_state"
	TopicRecordChanged = "record_changed"
)

// ErrNoSubscribers is returned by Publish when nobody listens on the topic.
var ErrNoSubscribers = errors.New("no subscribers for topic")

// Handler processes one payload. A returned error is logged; the payload is
// not redelivered.
type Handler func(payload any) error

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler Handler) (unsubscribe func(), err error)
}

// InMemoryQueue delivers every payload to every subscriber of its topic.
// Each subscriber sees payloads in publish order on its own goroutine.
type InMemoryQueue struct {
	mu     sync.Mutex
	subs   map[string][]*subscriber
	nextID int
	logger *zap.Logger

	// inflight counts payloads pushed to a subscriber and not yet handled
	// or dropped. idle is signalled when it reaches zero.
	flushMu  sync.Mutex
	idle     *sync.Cond
	inflight int
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &InMemoryQueue{
		subs:   make(map[string][]*subscriber),
		logger: logger,
	}
	q.idle = sync.NewCond(&q.flushMu)
	return q
}

// Publish hands payload to all subscribers of topic without waiting for them.
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	subs := append([]*subscriber(nil), q.subs[topic]...)
	q.mu.Unlock()

	if len(subs) == 0 {
		return fmt.Errorf("%w %s", ErrNoSubscribers, topic)
	}
	for _, s := range subs {
		q.track(1)
		if !s.push(payload) {
			q.track(-1)
		}
	}
	return nil
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) (func(), error) {
	if handler == nil {
		return nil, errors.New("queue: nil handler")
	}
	q.mu.Lock()
	q.nextID++
	s := &subscriber{
		id:      q.nextID,
		topic:   topic,
		handler: handler,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	q.subs[topic] = append(q.subs[topic], s)
	q.mu.Unlock()

	go q.run(s)

	var once sync.Once
	return func() { once.Do(func() { q.unsubscribe(s) }) }, nil
}

// Flush blocks until no payload is waiting or being handled, including
// payloads published while it waits.
func (q *InMemoryQueue) Flush() {
	q.flushMu.Lock()
	for q.inflight > 0 {
		q.idle.Wait()
	}
	q.flushMu.Unlock()
}

func (q *InMemoryQueue) track(delta int) {
	q.flushMu.Lock()
	q.inflight += delta
	if q.inflight == 0 {
		q.idle.Broadcast()
	}
	q.flushMu.Unlock()
}

func (q *InMemoryQueue) unsubscribe(s *subscriber) {
	q.mu.Lock()
	list := q.subs[s.topic]
	for i, other := range list {
		if other.id == s.id {
			q.subs[s.topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(q.subs[s.topic]) == 0 {
		delete(q.subs, s.topic)
	}
	q.mu.Unlock()

	if dropped := s.close(); dropped > 0 {
		q.track(-dropped)
	}
}

func (q *InMemoryQueue) run(s *subscriber) {
	for {
		payload, ok := s.pop()
		if !ok {
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		if err := s.handler(payload); err != nil {
			q.logger.Warn("queue handler failed",
				zap.String("topic", s.topic),
				zap.Error(err))
		}
		q.track(-1)
	}
}

type subscriber struct {
	id      int
	topic   string
	handler Handler

	mu      sync.Mutex
	pending []any
	closed  bool
	signal  chan struct{}
	done    chan struct{}
}

func (s *subscriber) push(payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending = append(s.pending, payload)
	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

func (s *subscriber) pop() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.pending) == 0 {
		return nil, false
	}
	p := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return p, true
}

// close stops delivery and returns how many queued payloads were dropped.
func (s *subscriber) close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	n := len(s.pending)
	s.pending = nil
	close(s.done)
	return n
}
