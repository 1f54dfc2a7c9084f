package book

import (
	"tob/internal/obs"
	"tob/internal/schema"
	"tob/pkg/exception"
)

// order is the builder's view of a resting order.
// It contributes to the top of its side iff top is set, epoch matches the
// side's current epoch and price equals the side's top price.
type order struct {
	symbol schema.SymbolIndex
	side   schema.Side
	top    bool
	epoch  uint32
	price  schema.Price
	qty    schema.Quantity
}

// Option configures a Builder.
type Option func(*Builder)

// WithShard restricts the builder to symbols with idx % shards == shard.
func WithShard(shard, shards int) Option {
	return func(b *Builder) {
		if shards > 1 {
			b.shard, b.shards = shard, shards
		}
	}
}

// Builder applies decoded events to the slots it owns. A Builder is not safe
// for concurrent use: it is the single writer of its shard.
type Builder struct {
	arena   *Arena
	metrics *obs.Metrics
	shard   int
	shards  int
	orders  map[uint64]order
}

// NewBuilder creates a builder over arena. metrics may be nil.
func NewBuilder(arena *Arena, metrics *obs.Metrics, opts ...Option) *Builder {
	b := &Builder{
		arena:   arena,
		metrics: metrics,
		shards:  1,
		orders:  make(map[uint64]order),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Owns reports whether idx belongs to this builder's shard.
func (b *Builder) Owns(idx schema.SymbolIndex) bool {
	return int(idx)%b.shards == b.shard
}

// Orders returns the number of tracked resting orders.
func (b *Builder) Orders() int {
	return len(b.orders)
}

// Apply applies ev to its symbol and returns the resulting state. The update
// is returned even when the visible state did not change.
func (b *Builder) Apply(ev schema.Event) (schema.BookUpdate, error) {
	if !ev.Kind.AddressesBook() {
		return schema.BookUpdate{}, exception.ErrNotBookEvent
	}
	if !ev.Resolved {
		b.metrics.Inc(obs.CounterDropped)
		return schema.BookUpdate{}, exception.ErrUnresolvedSymbol
	}
	if int(ev.Symbol) >= len(b.arena.slots) {
		b.metrics.Inc(obs.CounterOutOfRange)
		return schema.BookUpdate{}, exception.ErrSymbolOutOfRange
	}
	if !b.Owns(ev.Symbol) {
		return schema.BookUpdate{}, exception.ErrNotOwned
	}

	s := &b.arena.slots[ev.Symbol]
	tob := s.load()

	switch ev.Kind {
	case schema.KindAdd:
		b.add(s, &tob, ev.Symbol, ev.OrderRef, ev.Side, ev.Price, ev.Qty)
	case schema.KindTrade:
		tob.LastTrade = ev.Price
	case schema.KindCancel:
		b.reduce(s, &tob, ev.Symbol, ev.OrderRef, ev.Qty, false)
	case schema.KindDelete:
		b.reduce(s, &tob, ev.Symbol, ev.OrderRef, 0, true)
	case schema.KindExecute:
		if o, ok := b.reduce(s, &tob, ev.Symbol, ev.OrderRef, ev.Qty, false); ok {
			tob.LastTrade = o.price
		}
	case schema.KindReplace:
		if o, ok := b.reduce(s, &tob, ev.Symbol, ev.OrderRef, 0, true); ok {
			b.add(s, &tob, ev.Symbol, ev.NewOrderRef, o.side, ev.Price, ev.Qty)
		}
	}

	s.store(tob)
	b.metrics.Inc(obs.CounterApplied)

	return schema.BookUpdate{
		Symbol:    ev.Symbol,
		State:     tob,
		Seq:       ev.Seq,
		Kind:      ev.Kind,
		Side:      ev.Side,
		Price:     ev.Price,
		Qty:       ev.Qty,
		IngressTs: ev.IngressTs,
		DecodeTs:  ev.DecodeTs,
		Stale:     ev.Stale(),
	}, nil
}

func (b *Builder) side(s *slot, tob *schema.TopOfBook, side schema.Side) (*schema.Quote, *uint32) {
	if side == schema.SideBid {
		return &tob.Bid, &s.bidEpoch
	}
	return &tob.Ask, &s.askEpoch
}

func (b *Builder) add(s *slot, tob *schema.TopOfBook, idx schema.SymbolIndex, ref uint64, side schema.Side, price schema.Price, qty schema.Quantity) {
	if side != schema.SideBid && side != schema.SideAsk {
		return
	}
	if ref != 0 {
		if prev, ok := b.orders[ref]; ok {
			b.evict(s, tob, idx, ref, prev)
		}
	}
	if price <= 0 || qty < 0 {
		return
	}

	quote, epoch := b.side(s, tob, side)
	var improves bool
	if side == schema.SideBid {
		improves = price > quote.Price
	} else {
		improves = quote.Price == 0 || price < quote.Price
	}

	top := true
	switch {
	case qty == 0:
		top = false
	case improves:
		*epoch++
		quote.Price, quote.Qty = price, qty
	case price == quote.Price:
		quote.Qty += qty
	default:
		top = false
	}

	if ref != 0 {
		b.orders[ref] = order{
			symbol: idx,
			side:   side,
			top:    top,
			epoch:  *epoch,
			price:  price,
			qty:    qty,
		}
	}
}

// evict drops a reused order ref before it is stored again. A ref last seen
// on another symbol of this shard is removed from that symbol's slot, which
// is published without an update of its own.
func (b *Builder) evict(s *slot, tob *schema.TopOfBook, idx schema.SymbolIndex, ref uint64, prev order) {
	if prev.symbol == idx {
		b.reduce(s, tob, idx, ref, 0, true)
		return
	}
	other := &b.arena.slots[prev.symbol]
	otherTob := other.load()
	b.reduce(other, &otherTob, prev.symbol, ref, 0, true)
	other.store(otherTob)
}

// reduce removes qty shares (all remaining shares when all is set) from the
// order ref and from the top of book when the order contributes to it.
func (b *Builder) reduce(s *slot, tob *schema.TopOfBook, idx schema.SymbolIndex, ref uint64, qty schema.Quantity, all bool) (order, bool) {
	o, ok := b.orders[ref]
	if !ok || o.symbol != idx {
		b.metrics.Inc(obs.CounterUnknownOrder)
		return order{}, false
	}

	n := qty
	if all || n > o.qty || n < 0 {
		n = o.qty
	}

	quote, epoch := b.side(s, tob, o.side)
	if o.top && o.epoch == *epoch && o.price == quote.Price {
		quote.Qty -= n
		if quote.Qty <= 0 {
			*quote = schema.Quote{}
			*epoch++
		}
	}

	removed := o
	o.qty -= n
	if o.qty == 0 {
		delete(b.orders, ref)
	} else {
		b.orders[ref] = o
	}
	return removed, true
}
