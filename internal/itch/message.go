/*
Itch decodes ITCH-style order book messages into schema.Event.

# Wire
  - big-endian, fixed offsets
  - common header: type(1) locate(2) tracking(2) timestamp(8)
  - one decode function per message type, anything else is rejected

# Counters
  - every rejected frame increments malformed exactly once
  - unresolved locate codes are tagged and counted, never rejected
*/
package itch

// Message type tags.
const (
	TypeAddOrder      byte = 'A'
	TypeAddOrderMPID  byte = 'F'
	TypeOrderExecuted byte = 'E'
	TypeOrderCancel   byte = 'X'
	TypeOrderDelete   byte = 'D'
	TypeOrderReplace  byte = 'U'
	TypeTrade         byte = 'P'
	TypeSystemEvent   byte = 'S'
)

// MaxMessageSize bounds every frame handed to the decoder.
const MaxMessageSize = 64

const headerSize = 13

// Message sizes.
const (
	AddOrderSize      = headerSize + 8 + 1 + 4 + 8 + 4
	AddOrderMPIDSize  = AddOrderSize + 4
	OrderExecutedSize = headerSize + 8 + 4 + 8
	OrderCancelSize   = headerSize + 8 + 4
	OrderDeleteSize   = headerSize + 8
	OrderReplaceSize  = headerSize + 8 + 8 + 4 + 4
	TradeSize         = headerSize + 8 + 1 + 4 + 8 + 4 + 8
	SystemEventSize   = headerSize + 1
)

// Size returns the fixed size of a message type.
func Size(msgType byte) (int, bool) {
	switch msgType {
	case TypeAddOrder:
		return AddOrderSize, true
	case TypeAddOrderMPID:
		return AddOrderMPIDSize, true
	case TypeOrderExecuted:
		return OrderExecutedSize, true
	case TypeOrderCancel:
		return OrderCancelSize, true
	case TypeOrderDelete:
		return OrderDeleteSize, true
	case TypeOrderReplace:
		return OrderReplaceSize, true
	case TypeTrade:
		return TradeSize, true
	case TypeSystemEvent:
		return SystemEventSize, true
	default:
		return 0, false
	}
}

// Header is shared by every message.
type Header struct {
	Locate    uint16
	Tracking  uint16
	Timestamp uint64
}

// AddOrder is 'A', or 'F' when MPID is set.
type AddOrder struct {
	Header
	OrderRef uint64
	Side     byte
	Shares   uint32
	Stock    [8]byte
	Price    uint32
	MPID     [4]byte
	WithMPID bool
}

// OrderExecuted is 'E'.
type OrderExecuted struct {
	Header
	OrderRef uint64
	Executed uint32
	Match    uint64
}

// OrderCancel is 'X'.
type OrderCancel struct {
	Header
	OrderRef uint64
	Canceled uint32
}

// OrderDelete is 'D'.
type OrderDelete struct {
	Header
	OrderRef uint64
}

// OrderReplace is 'U'.
type OrderReplace struct {
	Header
	OrderRef    uint64
	NewOrderRef uint64
	Shares      uint32
	Price       uint32
}

// Trade is 'P', a non-cross trade against a hidden order.
type Trade struct {
	Header
	OrderRef uint64
	Side     byte
	Shares   uint32
	Stock    [8]byte
	Price    uint32
	Match    uint64
}

// SystemEvent is 'S'.
type SystemEvent struct {
	Header
	EventCode byte
}

// Message is implemented by every encodable message.
type Message interface {
	Type() byte
	AppendTo(dst []byte) []byte
}

func (m AddOrder) Type() byte {
	if m.WithMPID {
		return TypeAddOrderMPID
	}
	return TypeAddOrder
}

func (OrderExecuted) Type() byte { return TypeOrderExecuted }
func (OrderCancel) Type() byte   { return TypeOrderCancel }
func (OrderDelete) Type() byte   { return TypeOrderDelete }
func (OrderReplace) Type() byte  { return TypeOrderReplace }
func (Trade) Type() byte         { return TypeTrade }
func (SystemEvent) Type() byte   { return TypeSystemEvent }
