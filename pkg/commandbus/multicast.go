package commandbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultBacklog is the per-subscriber buffer size.
const DefaultBacklog = 100

var (
	// ErrLagged matches a *LaggedError with errors.Is.
	ErrLagged = errors.New("subscriber lagged")
	// ErrClosed is returned by Recv after the subscription is closed.
	ErrClosed = errors.New("subscription closed")
	// ErrNoMessage is returned by TryRecv when nothing is buffered.
	ErrNoMessage = errors.New("no message available")
)

// LaggedError reports that a subscriber fell behind and the oldest messages
// were dropped. Receiving continues with the oldest message still buffered.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged: %d messages missed", e.Missed)
}

func (e *LaggedError) Is(target error) bool {
	return target == ErrLagged
}

// Multicast fans every published value out to all current subscribers.
// Publish never blocks: each subscriber owns a bounded ring, and overflow
// drops that subscriber's oldest unread value.
type Multicast[T any] struct {
	backlog int

	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool

	// OnMissed, when set, is called with the number of values dropped for a
	// slow subscriber. It runs under the subscriber's lock and must not block.
	OnMissed func(n uint64)
	// OnSubscribersChanged, when set, is called with the new subscriber count.
	OnSubscribersChanged func(n int)
}

// NewMulticast creates a multicast with the given per-subscriber backlog.
func NewMulticast[T any](backlog int) *Multicast[T] {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Multicast[T]{
		backlog: backlog,
		subs:    make(map[*Subscription[T]]struct{}),
	}
}

// Publish delivers v to every subscriber and returns how many received it.
func (m *Multicast[T]) Publish(v T) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subs {
		sub.push(v)
	}
	return len(m.subs)
}

// Subscribe registers a new subscriber. It receives only values published
// after this call. A subscription taken after Close is already closed.
func (m *Multicast[T]) Subscribe() *Subscription[T] {
	id, _ := gonanoid.New()
	sub := &Subscription[T]{
		id:     id,
		parent: m,
		ring:   make([]T, m.backlog),
		ready:  make(chan struct{}, 1),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.shutdown()
		return sub
	}
	m.subs[sub] = struct{}{}
	n := len(m.subs)
	m.mu.Unlock()

	if m.OnSubscribersChanged != nil {
		m.OnSubscribersChanged(n)
	}
	return sub
}

// SubscriberCount returns the number of open subscriptions.
func (m *Multicast[T]) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close closes every subscription. Later publishes reach nobody.
func (m *Multicast[T]) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[*Subscription[T]]struct{})
	m.closed = true
	m.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
	}
	if m.OnSubscribersChanged != nil {
		m.OnSubscribersChanged(0)
	}
}

func (m *Multicast[T]) detach(sub *Subscription[T]) {
	m.mu.Lock()
	_, ok := m.subs[sub]
	delete(m.subs, sub)
	n := len(m.subs)
	m.mu.Unlock()

	if ok && m.OnSubscribersChanged != nil {
		m.OnSubscribersChanged(n)
	}
}

// Subscription is one receiver of a Multicast.
type Subscription[T any] struct {
	id     string
	parent *Multicast[T]

	mu     sync.Mutex
	ring   []T
	start  int
	size   int
	missed uint64
	closed bool

	ready     chan struct{}
	closeOnce sync.Once
}

// ID returns a short random identifier for logs.
func (s *Subscription[T]) ID() string {
	return s.id
}

// Ready is signalled when a value may be available. It is closed when the
// subscription closes.
func (s *Subscription[T]) Ready() <-chan struct{} {
	return s.ready
}

// TryRecv returns the next buffered value without waiting. After an overflow
// the first call returns a *LaggedError instead of a value.
func (s *Subscription[T]) TryRecv() (T, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return zero, ErrClosed
	}
	if s.missed > 0 {
		missed := s.missed
		s.missed = 0
		return zero, &LaggedError{Missed: missed}
	}
	if s.size == 0 {
		return zero, ErrNoMessage
	}

	v := s.ring[s.start]
	s.ring[s.start] = zero
	s.start = (s.start + 1) % len(s.ring)
	s.size--
	return v, nil
}

// Recv waits for the next value. It returns a *LaggedError once after values
// were dropped, ErrClosed after Close, or the context error.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, err := s.TryRecv()
		if !errors.Is(err, ErrNoMessage) {
			return v, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-s.ready:
		}
	}
}

// Pending returns the number of buffered values.
func (s *Subscription[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close detaches the subscription and releases its buffer. It is safe to call
// more than once.
func (s *Subscription[T]) Close() {
	s.parent.detach(s)
	s.shutdown()
}

func (s *Subscription[T]) shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.ring = nil
		s.size = 0
		// Drop a pending wakeup so the first receive after close sees !ok.
		select {
		case <-s.ready:
		default:
		}
		close(s.ready)
		s.mu.Unlock()
	})
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	capacity := len(s.ring)
	if s.size < capacity {
		s.ring[(s.start+s.size)%capacity] = v
		s.size++
	} else {
		// Overwrite oldest.
		s.ring[s.start] = v
		s.start = (s.start + 1) % capacity
		s.missed++
		if s.parent.OnMissed != nil {
			s.parent.OnMissed(1)
		}
	}

	// ready is only closed under mu, so the send cannot race with shutdown.
	select {
	case s.ready <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}
