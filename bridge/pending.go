package bridge

import (
	"errors"
	"sync"

	"github.com/afzaal-28/rn-inspector/protocol"
)

var errIDRangeExhausted = errors.New("no free call id in range")

// idRange hands out ids from [base, limit), wrapping around.
type idRange struct {
	mu    sync.Mutex
	base  int64
	limit int64
	next  int64
}

func newIDRange(base, limit int64) *idRange {
	return &idRange{base: base, limit: limit, next: base}
}

func (r *idRange) take() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.takeLocked()
}

func (r *idRange) takeLocked() int64 {
	id := r.next

	r.next++
	if r.next >= r.limit {
		r.next = r.base
	}

	return id
}

// pendingTable correlates outstanding calls with their responses. Every
// entry is removed exactly once, either by resolve or by cancel.
type pendingTable struct {
	ids     *idRange
	waiters map[int64]chan *protocol.Message
}

func newPendingTable(base, limit int64) *pendingTable {
	return &pendingTable{
		ids:     newIDRange(base, limit),
		waiters: make(map[int64]chan *protocol.Message),
	}
}

// register allocates an id that is not in flight.
func (p *pendingTable) register() (int64, <-chan *protocol.Message, error) {
	p.ids.mu.Lock()
	defer p.ids.mu.Unlock()

	for attempts := p.ids.limit - p.ids.base; attempts > 0; attempts-- {
		id := p.ids.takeLocked()
		if _, busy := p.waiters[id]; busy {
			continue
		}

		ch := make(chan *protocol.Message, 1)
		p.waiters[id] = ch

		return id, ch, nil
	}

	return 0, nil, errIDRangeExhausted
}

// resolve delivers msg to the call waiting on its id.
func (p *pendingTable) resolve(msg *protocol.Message) bool {
	p.ids.mu.Lock()
	ch, ok := p.waiters[msg.ID]
	delete(p.waiters, msg.ID)
	p.ids.mu.Unlock()

	if ok {
		ch <- msg
	}

	return ok
}

// cancel drops the entry for id and reports whether it was still pending.
func (p *pendingTable) cancel(id int64) bool {
	p.ids.mu.Lock()
	defer p.ids.mu.Unlock()

	_, ok := p.waiters[id]
	delete(p.waiters, id)

	return ok
}

func (p *pendingTable) len() int {
	p.ids.mu.Lock()
	defer p.ids.mu.Unlock()

	return len(p.waiters)
}
