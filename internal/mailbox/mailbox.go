package mailbox

import (
	"context"
	"sync"

	"tob/internal/obs"
	"tob/internal/schema"
)

// Mailbox delivers book updates with latest-value-wins semantics.
//
// Every symbol owns one slot. Put overwrites the slot and queues the symbol
// once; later Puts for a queued symbol only replace the value. Pop hands out
// the newest value of the oldest changed symbol. Memory is bounded by the
// universe size no matter how long the consumer stalls.
type Mailbox struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	slots    []schema.BookUpdate
	queued   []bool
	ring     []schema.SymbolIndex
	head     int
	tail     int
	size     int
	closed   bool
	metrics  *obs.Metrics
}

// New creates a mailbox for universe symbols. metrics may be nil.
func New(universe int, metrics *obs.Metrics) *Mailbox {
	if universe <= 0 {
		universe = schema.DefaultUniverse
	}
	m := &Mailbox{
		slots:   make([]schema.BookUpdate, universe),
		queued:  make([]bool, universe),
		ring:    make([]schema.SymbolIndex, universe),
		metrics: metrics,
	}
	m.notEmpty = sync.NewCond(&m.mu)
	return m
}

// Put stores u as the latest state of its symbol. It never blocks on the
// consumer and reports false once the mailbox is closed or u is out of range.
func (m *Mailbox) Put(u schema.BookUpdate) bool {
	idx := int(u.Symbol)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || idx >= len(m.slots) {
		return false
	}
	m.slots[idx] = u
	if m.queued[idx] {
		m.metrics.Inc(obs.CounterCoalesced)
		return true
	}
	m.queued[idx] = true
	m.ring[m.tail] = u.Symbol
	m.tail = (m.tail + 1) % len(m.ring)
	m.size++
	m.notEmpty.Signal()
	return true
}

// TryPop returns the next pending update without blocking.
func (m *Mailbox) TryPop() (schema.BookUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pop()
}

// Pop waits for the next pending update. After Close it keeps returning
// pending updates and reports false once none are left.
func (m *Mailbox) Pop() (schema.BookUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if u, ok := m.pop(); ok {
			return u, true
		}
		if m.closed {
			return schema.BookUpdate{}, false
		}
		m.notEmpty.Wait()
	}
}

func (m *Mailbox) pop() (schema.BookUpdate, bool) {
	if m.size == 0 {
		return schema.BookUpdate{}, false
	}
	idx := m.ring[m.head]
	m.head = (m.head + 1) % len(m.ring)
	m.size--
	m.queued[idx] = false
	m.metrics.Inc(obs.CounterDelivered)
	return m.slots[idx], true
}

// Pending returns the number of symbols waiting for delivery.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Close rejects further Puts and wakes waiting consumers.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.notEmpty.Broadcast()
}

// Run hands every update to handler until the mailbox is closed and drained.
// Cancelling ctx closes the mailbox. A slow handler is the backpressure
// signal: updates arriving meanwhile are coalesced.
func (m *Mailbox) Run(ctx context.Context, handler func(schema.BookUpdate)) {
	stop := context.AfterFunc(ctx, m.Close)
	defer stop()
	for {
		u, ok := m.Pop()
		if !ok {
			return
		}
		handler(u)
	}
}
