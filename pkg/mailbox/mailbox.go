// Package mailbox holds the two hand-off primitives shared between a
// device loop and its push-update listener: a wake signal and a
// last-write-wins value slot. Both sides touch nothing else, so these
// carry the whole locking discipline.
package mailbox

import "sync"

// Signal wakes a sleeping loop. Raise never blocks and repeated raises
// before a receive collapse into a single wake-up.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise marks the signal set.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait returns the channel a sleeper selects on. Receiving from it
// consumes the signal.
func (s *Signal) Wait() <-chan struct{} {
	return s.ch
}

// Mailbox holds at most one pending value. Set overwrites anything not
// yet taken; Take hands the value off exactly once. The zero value is
// ready to use.
type Mailbox[T any] struct {
	mu  sync.Mutex
	val T
	set bool
}

// Set stores v, replacing any value still pending.
func (m *Mailbox[T]) Set(v T) {
	m.mu.Lock()
	m.val = v
	m.set = true
	m.mu.Unlock()
}

// Take returns the pending value and clears the slot.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if !m.set {
		return zero, false
	}
	v := m.val
	m.val = zero
	m.set = false
	return v, true
}
