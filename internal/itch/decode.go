package itch

import (
	"encoding/binary"
	"time"

	"tob/internal/obs"
	"tob/internal/schema"
	"tob/pkg/exception"
)

// Metadata travels alongside a frame and is not derived from its bytes.
type Metadata struct {
	Seq       uint32
	Type      byte
	Length    uint16
	IngressTs int64
}

// MetadataFor builds metadata for a frame whose type and length are taken
// from the frame itself, as on a replay stream.
func MetadataFor(frame []byte, seq uint32, ingressTs int64) Metadata {
	meta := Metadata{Seq: seq, Length: uint16(len(frame)), IngressTs: ingressTs}
	if len(frame) > 0 {
		meta.Type = frame[0]
	}
	return meta
}

// Resolver maps exchange identifiers to dense symbol indexes.
type Resolver interface {
	Resolve(locate uint16) (schema.SymbolIndex, bool)
	ResolveStock(stock schema.Stock) (schema.SymbolIndex, bool)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock overrides the decode timestamp source.
func WithClock(now func() int64) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// Decoder turns frames into events. It keeps no state between calls, so one
// Decoder may be shared by several ingress goroutines.
type Decoder struct {
	resolver Resolver
	metrics  *obs.Metrics
	now      func() int64
}

// NewDecoder creates a decoder. metrics may be nil.
func NewDecoder(resolver Resolver, metrics *obs.Metrics, opts ...Option) *Decoder {
	d := &Decoder{
		resolver: resolver,
		metrics:  metrics,
		now:      func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode validates frame against meta and decodes it. On error no event is
// produced and the malformed counter is incremented once.
func (d *Decoder) Decode(frame []byte, meta Metadata) (schema.Event, error) {
	ev, err := d.decode(frame, meta)
	if err != nil {
		d.metrics.Inc(obs.CounterMalformed)
		return schema.Event{}, err
	}

	ev.Seq = meta.Seq
	ev.IngressTs = meta.IngressTs
	ev.DecodeTs = d.now()
	if ev.IngressTs > 0 && ev.DecodeTs > ev.IngressTs {
		d.metrics.ObserveDecode(time.Duration(ev.DecodeTs - ev.IngressTs))
	}

	if ev.Kind != schema.KindSystem {
		d.resolve(&ev)
	}
	d.metrics.Inc(obs.CounterDecoded)
	return ev, nil
}

func (d *Decoder) decode(frame []byte, meta Metadata) (schema.Event, error) {
	if len(frame) > MaxMessageSize {
		return schema.Event{}, exception.ErrFrameTooLarge
	}
	size, ok := Size(meta.Type)
	if !ok {
		d.metrics.Inc(obs.CounterUnknownType)
		return schema.Event{}, exception.ErrUnknownMessageType
	}
	if int(meta.Length) != size || len(frame) < size {
		d.metrics.Inc(obs.CounterLengthMismatch)
		return schema.Event{}, exception.ErrLengthMismatch
	}
	if frame[0] != meta.Type {
		return schema.Event{}, exception.ErrTypeMismatch
	}

	frame = frame[:size]
	switch meta.Type {
	case TypeAddOrder, TypeAddOrderMPID:
		return decodeAddOrder(frame)
	case TypeOrderExecuted:
		return decodeOrderExecuted(frame), nil
	case TypeOrderCancel:
		return decodeOrderCancel(frame), nil
	case TypeOrderDelete:
		return decodeOrderDelete(frame), nil
	case TypeOrderReplace:
		return decodeOrderReplace(frame), nil
	case TypeTrade:
		return decodeTrade(frame)
	case TypeSystemEvent:
		return decodeSystemEvent(frame), nil
	default:
		d.metrics.Inc(obs.CounterUnknownType)
		return schema.Event{}, exception.ErrUnknownMessageType
	}
}

func (d *Decoder) resolve(ev *schema.Event) {
	if d.resolver != nil {
		if idx, ok := d.resolver.Resolve(ev.Locate); ok {
			ev.Symbol, ev.Resolved = idx, true
			return
		}
		if !ev.Stock.IsZero() {
			if idx, ok := d.resolver.ResolveStock(ev.Stock); ok {
				ev.Symbol, ev.Resolved = idx, true
				return
			}
		}
	}
	ev.Symbol = schema.SentinelIndex
	d.metrics.Inc(obs.CounterUnresolved)
}

func decodeHeader(src []byte, kind schema.Kind) schema.Event {
	return schema.Event{
		Kind:      kind,
		Locate:    binary.BigEndian.Uint16(src[1:3]),
		Tracking:  binary.BigEndian.Uint16(src[3:5]),
		Timestamp: binary.BigEndian.Uint64(src[5:13]),
	}
}

func decodeAddOrder(src []byte) (schema.Event, error) {
	side, ok := schema.SideFromWire(src[21])
	if !ok {
		return schema.Event{}, exception.ErrInvalidSide
	}
	ev := decodeHeader(src, schema.KindAdd)
	ev.OrderRef = binary.BigEndian.Uint64(src[13:21])
	ev.Side = side
	ev.Qty = schema.Quantity(binary.BigEndian.Uint32(src[22:26]))
	copy(ev.Stock[:], src[26:34])
	ev.Price = schema.Price(binary.BigEndian.Uint32(src[34:38]))
	return ev, nil
}

func decodeOrderExecuted(src []byte) schema.Event {
	ev := decodeHeader(src, schema.KindExecute)
	ev.OrderRef = binary.BigEndian.Uint64(src[13:21])
	ev.Qty = schema.Quantity(binary.BigEndian.Uint32(src[21:25]))
	ev.Match = binary.BigEndian.Uint64(src[25:33])
	return ev
}

func decodeOrderCancel(src []byte) schema.Event {
	ev := decodeHeader(src, schema.KindCancel)
	ev.OrderRef = binary.BigEndian.Uint64(src[13:21])
	ev.Qty = schema.Quantity(binary.BigEndian.Uint32(src[21:25]))
	return ev
}

func decodeOrderDelete(src []byte) schema.Event {
	ev := decodeHeader(src, schema.KindDelete)
	ev.OrderRef = binary.BigEndian.Uint64(src[13:21])
	return ev
}

func decodeOrderReplace(src []byte) schema.Event {
	ev := decodeHeader(src, schema.KindReplace)
	ev.OrderRef = binary.BigEndian.Uint64(src[13:21])
	ev.NewOrderRef = binary.BigEndian.Uint64(src[21:29])
	ev.Qty = schema.Quantity(binary.BigEndian.Uint32(src[29:33]))
	ev.Price = schema.Price(binary.BigEndian.Uint32(src[33:37]))
	return ev
}

func decodeTrade(src []byte) (schema.Event, error) {
	side, ok := schema.SideFromWire(src[21])
	if !ok {
		return schema.Event{}, exception.ErrInvalidSide
	}
	ev := decodeHeader(src, schema.KindTrade)
	ev.OrderRef = binary.BigEndian.Uint64(src[13:21])
	ev.Side = side
	ev.Qty = schema.Quantity(binary.BigEndian.Uint32(src[22:26]))
	copy(ev.Stock[:], src[26:34])
	ev.Price = schema.Price(binary.BigEndian.Uint32(src[34:38]))
	ev.Match = binary.BigEndian.Uint64(src[38:46])
	return ev, nil
}

func decodeSystemEvent(src []byte) schema.Event {
	ev := decodeHeader(src, schema.KindSystem)
	ev.EventCode = src[13]
	return ev
}
