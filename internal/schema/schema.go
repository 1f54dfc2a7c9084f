package schema

// Kind is the closed set of decoded message kinds.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAdd
	KindCancel
	KindDelete
	KindReplace
	KindExecute
	KindTrade
	KindSystem
)

var kindNames = [...]string{
	KindUnknown: "Unknown",
	KindAdd:     "Add",
	KindCancel:  "Cancel",
	KindDelete:  "Delete",
	KindReplace: "Replace",
	KindExecute: "Execute",
	KindTrade:   "Trade",
	KindSystem:  "System",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// AddressesBook reports whether events of this kind mutate a symbol book.
func (k Kind) AddressesBook() bool {
	return k >= KindAdd && k <= KindTrade
}

// Side is the order side carried by Add and Trade messages.
type Side uint8

const (
	SideNone Side = iota
	SideBid
	SideAsk
)

// SideFromWire maps the ITCH side byte to a Side.
func SideFromWire(b byte) (Side, bool) {
	switch b {
	case 'B':
		return SideBid, true
	case 'S':
		return SideAsk, true
	default:
		return SideNone, false
	}
}

// Wire returns the ITCH side byte, zero for SideNone.
func (s Side) Wire() byte {
	switch s {
	case SideBid:
		return 'B'
	case SideAsk:
		return 'S'
	default:
		return 0
	}
}

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "none"
	}
}

// EventFlags annotate a decoded event.
type EventFlags uint8

const (
	// FlagStale marks an event received after a sequence gap.
	FlagStale EventFlags = 1 << iota
)

// Event is a decoded, normalized market data message.
// Fields not meaningful for Kind are zero.
type Event struct {
	Kind     Kind
	Symbol   SymbolIndex
	Resolved bool
	Side     Side
	Price    Price
	Qty      Quantity

	OrderRef    uint64
	NewOrderRef uint64 // Replace only
	Match       uint64 // Trade and Execute only
	EventCode   byte   // System only

	Locate    uint16
	Tracking  uint16
	Stock     Stock
	Timestamp uint64 // exchange timestamp as carried on the wire

	Seq       uint32
	IngressTs int64
	DecodeTs  int64
	Flags     EventFlags
}

// Stale reports whether the event followed a sequence gap.
func (e Event) Stale() bool {
	return e.Flags&FlagStale != 0
}
