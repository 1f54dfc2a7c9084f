package codec

import (
	"encoding/binary"

	"tob/internal/schema"
)

// RecordSize is the fixed size of an export record.
const RecordSize = 64

// crcOffset is where the record checksum lives; the checksum covers the bytes before it.
const crcOffset = 56

// Reason is the risk gate verdict carried in bits 2-4 of the record flags.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonPriceBand
	ReasonRate
	ReasonPosition
	ReasonKill
)

var reasonNames = [...]string{"none", "price_band", "rate", "position", "kill"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Record flag bits.
const (
	FlagStale    uint8 = 1 << 0
	FlagAccepted uint8 = 1 << 1

	reasonShift = 2
	reasonMask  = 0x07
)

// Record side values. Qty and Price quote the record side; SideNone quotes the bid.
const (
	SideBid  uint8 = 0
	SideAsk  uint8 = 1
	SideNone uint8 = 2
)

// Record is the 64-byte export record produced for each book update. Every
// record carries the full book state: the record side's quote in Qty/Price,
// the opposite side in OppQty/OppPrice and the last trade price, so any single
// record is enough to rebuild the symbol's top of book.
type Record struct {
	Seq       uint32
	LastTrade uint32
	TsIngress uint64
	TsDecode  uint64
	Symbol    uint16
	Side      uint8
	Flags     uint8
	Imbalance uint32
	Qty       uint32
	Price     uint32
	RefPrice  uint32
	Feature0  uint32
	OppQty    uint32
	OppPrice  uint32
	CRC       uint16
}

// Latency returns decode minus ingress, or zero when the clocks disagree.
func (r Record) Latency() uint64 {
	if r.TsDecode <= r.TsIngress {
		return 0
	}
	return r.TsDecode - r.TsIngress
}

func (r Record) Stale() bool    { return r.Flags&FlagStale != 0 }
func (r Record) Accepted() bool { return r.Flags&FlagAccepted != 0 }

func (r Record) Reason() Reason {
	return Reason((r.Flags >> reasonShift) & reasonMask)
}

// SpreadBps is feature 0.
func (r Record) SpreadBps() uint32 { return r.Feature0 }

// State rebuilds the top of book the record was taken from.
func (r Record) State() schema.TopOfBook {
	own := quoteOf(r.Price, r.Qty)
	opp := quoteOf(r.OppPrice, r.OppQty)
	tob := schema.TopOfBook{Bid: own, Ask: opp, LastTrade: schema.Price(r.LastTrade)}
	if r.Side == SideAsk {
		tob.Bid, tob.Ask = opp, own
	}
	return tob
}

func quoteOf(price, qty uint32) schema.Quote {
	if price == 0 {
		return schema.Quote{}
	}
	return schema.Quote{Price: schema.Price(price), Qty: schema.Quantity(qty)}
}

// PackFlags builds the flags byte.
func PackFlags(stale, accepted bool, reason Reason) uint8 {
	var flags uint8
	if stale {
		flags |= FlagStale
	}
	if accepted {
		flags |= FlagAccepted
	}
	return flags | (uint8(reason)&reasonMask)<<reasonShift
}

// NewRecord forms the export record for an update. The record side follows
// the triggering event.
func NewRecord(u schema.BookUpdate, ref schema.Price, accepted bool, reason Reason) Record {
	own, opp := u.State.Bid, u.State.Ask
	side := SideNone
	switch u.Side {
	case schema.SideBid:
		side = SideBid
	case schema.SideAsk:
		side = SideAsk
		own, opp = opp, own
	}
	return Record{
		Seq:       u.Seq,
		LastTrade: clamp32(int64(u.State.LastTrade)),
		TsIngress: clampTs(u.IngressTs),
		TsDecode:  clampTs(u.DecodeTs),
		Symbol:    uint16(u.Symbol),
		Side:      side,
		Flags:     PackFlags(u.Stale, accepted, reason),
		Imbalance: u.State.Imbalance(),
		Qty:       clamp32(int64(own.Qty)),
		Price:     clamp32(int64(own.Price)),
		RefPrice:  clamp32(int64(ref)),
		Feature0:  u.State.SpreadBps(),
		OppQty:    clamp32(int64(opp.Qty)),
		OppPrice:  clamp32(int64(opp.Price)),
	}
}

// EncodeRecord serializes a record and stamps its checksum.
func EncodeRecord(dst []byte, r Record) []byte {
	if cap(dst) < RecordSize {
		dst = make([]byte, RecordSize)
	} else {
		dst = dst[:RecordSize]
	}
	clear(dst)

	binary.LittleEndian.PutUint32(dst[0:4], r.Seq)
	binary.LittleEndian.PutUint32(dst[4:8], r.LastTrade)
	binary.LittleEndian.PutUint64(dst[8:16], r.TsIngress)
	binary.LittleEndian.PutUint64(dst[16:24], r.TsDecode)
	binary.LittleEndian.PutUint16(dst[24:26], r.Symbol)
	dst[26] = r.Side
	dst[27] = r.Flags
	binary.LittleEndian.PutUint32(dst[28:32], r.Imbalance)
	binary.LittleEndian.PutUint32(dst[32:36], r.Qty)
	binary.LittleEndian.PutUint32(dst[36:40], r.Price)
	binary.LittleEndian.PutUint32(dst[40:44], r.RefPrice)
	binary.LittleEndian.PutUint32(dst[44:48], r.Feature0)
	binary.LittleEndian.PutUint32(dst[48:52], r.OppQty)
	binary.LittleEndian.PutUint32(dst[52:56], r.OppPrice)
	binary.LittleEndian.PutUint16(dst[crcOffset:crcOffset+2], CRC16(dst[:crcOffset]))

	return dst
}

// DecodeRecord parses a record. Bytes 58-63 are reserved.
func DecodeRecord(src []byte) (Record, bool) {
	if len(src) < RecordSize {
		return Record{}, false
	}
	return Record{
		Seq:       binary.LittleEndian.Uint32(src[0:4]),
		LastTrade: binary.LittleEndian.Uint32(src[4:8]),
		TsIngress: binary.LittleEndian.Uint64(src[8:16]),
		TsDecode:  binary.LittleEndian.Uint64(src[16:24]),
		Symbol:    binary.LittleEndian.Uint16(src[24:26]),
		Side:      src[26],
		Flags:     src[27],
		Imbalance: binary.LittleEndian.Uint32(src[28:32]),
		Qty:       binary.LittleEndian.Uint32(src[32:36]),
		Price:     binary.LittleEndian.Uint32(src[36:40]),
		RefPrice:  binary.LittleEndian.Uint32(src[40:44]),
		Feature0:  binary.LittleEndian.Uint32(src[44:48]),
		OppQty:    binary.LittleEndian.Uint32(src[48:52]),
		OppPrice:  binary.LittleEndian.Uint32(src[52:56]),
		CRC:       binary.LittleEndian.Uint16(src[crcOffset : crcOffset+2]),
	}, true
}

// VerifyRecord reports whether the stored checksum matches the payload.
func VerifyRecord(src []byte) bool {
	if len(src) < RecordSize {
		return false
	}
	return binary.LittleEndian.Uint16(src[crcOffset:crcOffset+2]) == CRC16(src[:crcOffset])
}

func clampTs(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func clamp32(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > 0xFFFFFFFF:
		return 0xFFFFFFFF
	}
	return uint32(v)
}
