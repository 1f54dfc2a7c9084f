package risk

import (
	"time"

	"tob/internal/codec"
	"tob/internal/schema"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Decision is the gate verdict for one book update.
type Decision struct {
	Accepted bool
	Reason   codec.Reason
	RefPrice schema.Price
}

// Gate evaluates book updates against the configured limits. The quote on the
// updated side is treated as a signal: accepted bid signals add to the symbol
// position, ask signals subtract. A Gate is owned by one goroutine.
type Gate struct {
	cfg      Config
	refs     *References
	tokens   int64
	lastFill int64
	position map[schema.SymbolIndex]int64
}

// NewGate creates a gate with a full token bucket. refs may be nil.
func NewGate(cfg Config, refs *References) *Gate {
	if cfg.TokenMax == 0 {
		cfg.TokenMax = DefaultTokenMax
	}
	return &Gate{
		cfg:      cfg,
		refs:     refs,
		tokens:   int64(cfg.TokenMax),
		position: make(map[schema.SymbolIndex]int64),
	}
}

func (g *Gate) Config() Config {
	return g.cfg
}

// Position returns the accumulated signed position of a symbol.
func (g *Gate) Position(idx schema.SymbolIndex) int64 {
	return g.position[idx]
}

// Evaluate checks, in order, the kill switch, the price band, the signal rate
// and the position limit. now is in nanoseconds; zero means the wall clock.
func (g *Gate) Evaluate(u schema.BookUpdate, now int64) Decision {
	if now == 0 {
		now = time.Now().UTC().UnixNano()
	}

	quote := u.State.Bid
	if u.Side == schema.SideAsk {
		quote = u.State.Ask
	}
	decision := Decision{RefPrice: g.refs.Reference(u.Symbol, u.State)}

	if g.cfg.KillSwitch {
		decision.Reason = codec.ReasonKill
		return decision
	}

	if g.cfg.PriceBandBps > 0 && quote.Price > 0 {
		ref := int64(decision.RefPrice)
		diff := absInt64(int64(quote.Price) - ref)
		if exceedsDeviation(diff, ref, int64(g.cfg.PriceBandBps)) {
			decision.Reason = codec.ReasonPriceBand
			return decision
		}
	}

	if g.cfg.TokenRate > 0 {
		g.refill(now)
		if g.tokens <= 0 {
			decision.Reason = codec.ReasonRate
			return decision
		}
		g.tokens--
	}

	next := applySide(g.position[u.Symbol], u.Side, int64(quote.Qty))
	if g.cfg.PositionLimit > 0 && absInt64(next) > int64(g.cfg.PositionLimit) {
		decision.Reason = codec.ReasonPosition
		return decision
	}
	g.position[u.Symbol] = next

	decision.Accepted = true
	return decision
}

func (g *Gate) refill(now int64) {
	if g.lastFill == 0 {
		g.lastFill = now
		return
	}
	elapsed := now - g.lastFill
	if elapsed < int64(time.Millisecond) {
		return
	}
	ms := elapsed / int64(time.Millisecond)
	g.lastFill += ms * int64(time.Millisecond)
	g.tokens = min(g.tokens+ms*int64(g.cfg.TokenRate), int64(g.cfg.TokenMax))
}

func applySide(pos int64, side schema.Side, qty int64) int64 {
	switch side {
	case schema.SideBid:
		return pos + qty
	case schema.SideAsk:
		return pos - qty
	default:
		return pos
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func exceedsDeviation(diff int64, ref int64, bps int64) bool {
	if diff <= 0 || ref <= 0 || bps <= 0 {
		return false
	}
	if diff > maxInt64/10000 {
		return true
	}
	lhs := diff * 10000
	if ref > maxInt64/bps {
		return true
	}
	rhs := ref * bps
	return lhs > rhs
}
