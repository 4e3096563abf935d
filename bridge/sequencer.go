package bridge

import (
	"sync"
	"time"
)

// orderFallback bounds how long a finished console event waits for earlier
// ones before it is released anyway.
const orderFallback = 5 * time.Second

// sequencer releases asynchronously prepared events in the order their
// source frames arrived.
type sequencer struct {
	mu      sync.Mutex
	counter uint64
	next    uint64
	active  map[uint64]bool
	waiters map[uint64]chan struct{}
	stop    chan struct{}
}

func newSequencer(stop chan struct{}) *sequencer {
	return &sequencer{
		next:    1,
		active:  make(map[uint64]bool),
		waiters: make(map[uint64]chan struct{}),
		stop:    stop,
	}
}

// acquire reserves the next position.
func (s *sequencer) acquire() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	seq := s.counter
	s.active[seq] = true

	return seq
}

// wait blocks until every earlier position has been released. It returns
// false when the sequencer is stopped.
func (s *sequencer) wait(seq uint64) bool {
	s.mu.Lock()

	s.advance()

	if seq <= s.next {
		s.mu.Unlock()
		return true
	}

	waiter := make(chan struct{})
	s.waiters[seq] = waiter
	s.mu.Unlock()

	timer := time.NewTimer(orderFallback)
	defer timer.Stop()

	select {
	case <-waiter:
		return true
	case <-s.stop:
		return false
	case <-timer.C:
		s.mu.Lock()
		delete(s.waiters, seq)
		s.mu.Unlock()

		return true
	}
}

// release marks seq as done and wakes the next waiter.
func (s *sequencer) release(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, seq)
	s.advance()
}

// advance moves past released positions. Must be called with mu held.
func (s *sequencer) advance() {
	for s.next <= s.counter && !s.active[s.next] {
		s.next++

		if waiter, ok := s.waiters[s.next]; ok {
			close(waiter)
			delete(s.waiters, s.next)
		}
	}
}
