package schema

// Quote is one side of the top of book.
type Quote struct {
	Price Price
	Qty   Quantity
}

// Empty reports whether the side has no quote.
func (q Quote) Empty() bool {
	return q.Price == 0
}

// TopOfBook is the per-symbol book state.
type TopOfBook struct {
	Bid       Quote
	Ask       Quote
	LastTrade Price
}

// Spread returns ask minus bid, or zero if either side is empty.
func (t TopOfBook) Spread() Price {
	if t.Bid.Empty() || t.Ask.Empty() {
		return 0
	}
	return t.Ask.Price - t.Bid.Price
}

// SpreadBps returns the spread in basis points of the mid price.
func (t TopOfBook) SpreadBps() uint32 {
	spread := t.Spread()
	if spread <= 0 {
		return 0
	}
	mid := (t.Ask.Price + t.Bid.Price) / 2
	if mid <= 0 {
		return 0
	}
	return uint32(int64(spread) * 10000 / int64(mid))
}

// Imbalance returns bid qty share of the top level in basis points.
func (t TopOfBook) Imbalance() uint32 {
	total := t.Bid.Qty + t.Ask.Qty
	if total <= 0 {
		return 0
	}
	return uint32(int64(t.Bid.Qty) * 10000 / int64(total))
}

// BookUpdate carries the current state of one symbol after applying an event.
type BookUpdate struct {
	Symbol SymbolIndex
	State  TopOfBook
	Seq    uint32

	Kind      Kind
	Side      Side
	Price     Price
	Qty       Quantity
	IngressTs int64
	DecodeTs  int64
	Stale     bool
}
