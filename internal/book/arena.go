package book

import (
	"runtime"
	"sync/atomic"

	"tob/internal/schema"
	"tob/pkg/exception"
)

// slot holds one symbol's book state.
//
// Readers use a sequence lock: the version is odd while the owning builder is
// writing, and a read is retried if the version moved underneath it.
type slot struct {
	ver    atomic.Uint64
	bidPx  atomic.Int64
	bidQty atomic.Int64
	askPx  atomic.Int64
	askQty atomic.Int64
	last   atomic.Int64

	// owner only
	bidEpoch uint32
	askEpoch uint32
}

func (s *slot) store(t schema.TopOfBook) {
	s.ver.Add(1)
	s.bidPx.Store(int64(t.Bid.Price))
	s.bidQty.Store(int64(t.Bid.Qty))
	s.askPx.Store(int64(t.Ask.Price))
	s.askQty.Store(int64(t.Ask.Qty))
	s.last.Store(int64(t.LastTrade))
	s.ver.Add(1)
}

func (s *slot) load() schema.TopOfBook {
	for {
		v := s.ver.Load()
		if v&1 == 1 {
			runtime.Gosched()
			continue
		}
		t := schema.TopOfBook{
			Bid:       schema.Quote{Price: schema.Price(s.bidPx.Load()), Qty: schema.Quantity(s.bidQty.Load())},
			Ask:       schema.Quote{Price: schema.Price(s.askPx.Load()), Qty: schema.Quantity(s.askQty.Load())},
			LastTrade: schema.Price(s.last.Load()),
		}
		if s.ver.Load() == v {
			return t
		}
	}
}

// Arena is the book state of the whole symbol universe. It is allocated once,
// zeroed, and never shrinks. Each slot is written by exactly one Builder.
type Arena struct {
	slots []slot
}

// NewArena allocates universe slots.
func NewArena(universe int) *Arena {
	if universe <= 0 {
		universe = schema.DefaultUniverse
	}
	return &Arena{slots: make([]slot, universe)}
}

// Universe returns the number of slots.
func (a *Arena) Universe() int {
	return len(a.slots)
}

// Snapshot returns a consistent copy of one symbol's state. It is safe to call
// while builders are running.
func (a *Arena) Snapshot(idx schema.SymbolIndex) (schema.TopOfBook, error) {
	if int(idx) >= len(a.slots) {
		return schema.TopOfBook{}, exception.ErrSymbolOutOfRange
	}
	return a.slots[idx].load(), nil
}

// Range calls fn for every slot with a non-zero state.
func (a *Arena) Range(fn func(idx schema.SymbolIndex, tob schema.TopOfBook) bool) {
	for i := range a.slots {
		tob := a.slots[i].load()
		if tob == (schema.TopOfBook{}) {
			continue
		}
		if !fn(schema.SymbolIndex(i), tob) {
			return
		}
	}
}

// Restore overwrites one slot. It must only be called before builders start.
func (a *Arena) Restore(idx schema.SymbolIndex, tob schema.TopOfBook) error {
	if int(idx) >= len(a.slots) {
		return exception.ErrSymbolOutOfRange
	}
	a.slots[idx].store(tob)
	return nil
}
