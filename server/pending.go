package server

import (
	"sync"

	"github.com/crisscross-dht/crisscrossdht/wire"
)

// pendingTable correlates outbound queries to their responses by
// transaction id, the way the search engine's Transport.Query blocks on a
// matching reply.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[string]chan *wire.Message
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[string]chan *wire.Message)}
}

func (p *pendingTable) register(tid []byte) chan *wire.Message {
	ch := make(chan *wire.Message, 1)
	p.mu.Lock()
	p.waiters[string(tid)] = ch
	p.mu.Unlock()
	return ch
}

func (p *pendingTable) forget(tid []byte) {
	p.mu.Lock()
	delete(p.waiters, string(tid))
	p.mu.Unlock()
}

// deliver routes an inbound response to its waiter, reporting whether one
// was found. Messages with no matching waiter are silently dropped — a
// response to a query that already timed out.
func (p *pendingTable) deliver(m *wire.Message) bool {
	p.mu.Lock()
	ch, ok := p.waiters[string(m.TID)]
	if ok {
		delete(p.waiters, string(m.TID))
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- m
	return true
}
