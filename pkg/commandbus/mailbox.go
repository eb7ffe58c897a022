package commandbus

import "sync"

// Mailbox keeps the most recent value per key.
type Mailbox[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

// NewMailbox creates an empty mailbox.
func NewMailbox[K comparable, V any]() *Mailbox[K, V] {
	return &Mailbox[K, V]{
		entries: make(map[K]V),
	}
}

// Put stores v under k, replacing any pending value. It reports whether a
// value was replaced.
func (m *Mailbox[K, V]) Put(k K, v V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, replaced := m.entries[k]
	m.entries[k] = v
	return replaced
}

// Take removes and returns the pending value for k.
func (m *Mailbox[K, V]) Take(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[k]
	if ok {
		delete(m.entries, k)
	}
	return v, ok
}

// Peek returns the pending value for k without removing it.
func (m *Mailbox[K, V]) Peek(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[k]
	return v, ok
}

// TakeAll removes and returns every pending value.
func (m *Mailbox[K, V]) TakeAll() map[K]V {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.entries
	m.entries = make(map[K]V)
	return out
}

// Len returns the number of pending values.
func (m *Mailbox[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
