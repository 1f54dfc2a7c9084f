package mdg

import (
	"time"

	"github.com/yanun0323/errors"

	"tob/internal/itch"
	"tob/internal/symbol"
)

// step is one phase of the per-symbol order lifecycle.
type step uint8

const (
	stepAddBid step = iota
	stepAddAsk
	stepExecuteBid
	stepCancelAsk
	stepReplaceAsk
	stepTrade
	stepDeleteBid
	stepDeleteAsk
	stepCount
)

type orders struct {
	bid uint64
	ask uint64
}

// Generator creates a deterministic stream of ITCH messages. Every symbol
// walks the same lifecycle: add bid, add ask, partial execution, partial
// cancel, replace, hidden trade, delete both sides. Prices drift by one tick
// per round.
type Generator struct {
	entries   []symbol.Entry
	basePrice uint32
	baseSize  uint32
	spread    uint32

	index   int
	step    step
	round   uint32
	nextRef uint64
	match   uint64
	live    []orders
}

// NewGenerator creates a generator over entries.
func NewGenerator(entries []symbol.Entry, basePrice, baseSize, spread uint32) (*Generator, error) {
	if len(entries) == 0 {
		return nil, errors.New("generator has no symbols")
	}
	if basePrice == 0 {
		return nil, errors.New("generator base price must be > 0")
	}
	if baseSize < 2 {
		baseSize = 2
	}
	if spread >= basePrice {
		return nil, errors.Errorf("generator spread %d must be below base price %d", spread, basePrice)
	}
	return &Generator{
		entries:   entries,
		basePrice: basePrice,
		baseSize:  baseSize,
		spread:    spread,
		live:      make([]orders, len(entries)),
	}, nil
}

// Next creates the next message in sequence.
func (g *Generator) Next(now time.Time) itch.Message {
	i := g.index
	e := g.entries[i]
	h := itch.Header{Locate: e.Locate, Timestamp: uint64(now.UnixNano())}
	mid := g.basePrice + g.round
	bid := mid - g.spread
	ask := mid + g.spread

	var msg itch.Message
	switch g.step {
	case stepAddBid:
		g.live[i].bid = g.ref()
		msg = itch.AddOrder{Header: h, OrderRef: g.live[i].bid, Side: 'B', Shares: g.baseSize, Stock: e.Stock, Price: bid}
	case stepAddAsk:
		g.live[i].ask = g.ref()
		msg = itch.AddOrder{Header: h, OrderRef: g.live[i].ask, Side: 'S', Shares: g.baseSize, Stock: e.Stock, Price: ask, MPID: [4]byte{'T', 'O', 'B', 'G'}, WithMPID: true}
	case stepExecuteBid:
		g.match++
		msg = itch.OrderExecuted{Header: h, OrderRef: g.live[i].bid, Executed: g.baseSize / 2, Match: g.match}
	case stepCancelAsk:
		msg = itch.OrderCancel{Header: h, OrderRef: g.live[i].ask, Canceled: 1}
	case stepReplaceAsk:
		old := g.live[i].ask
		g.live[i].ask = g.ref()
		msg = itch.OrderReplace{Header: h, OrderRef: old, NewOrderRef: g.live[i].ask, Shares: g.baseSize, Price: ask + 1}
	case stepTrade:
		g.match++
		msg = itch.Trade{Header: h, Side: 'B', Shares: 1, Stock: e.Stock, Price: mid, Match: g.match}
	case stepDeleteBid:
		msg = itch.OrderDelete{Header: h, OrderRef: g.live[i].bid}
	case stepDeleteAsk:
		msg = itch.OrderDelete{Header: h, OrderRef: g.live[i].ask}
	}

	g.advance()
	return msg
}

func (g *Generator) advance() {
	g.index++
	if g.index < len(g.entries) {
		return
	}
	g.index = 0
	g.step++
	if g.step == stepCount {
		g.step = stepAddBid
		g.round++
	}
}

func (g *Generator) ref() uint64 {
	g.nextRef++
	return g.nextRef
}
