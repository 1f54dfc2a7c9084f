package codec

import (
	"encoding/binary"

	"tob/internal/schema"
)

const UpdatePayloadSize = 88

const updateFlagStale uint8 = 1

// EncodeUpdate serializes a book update into a fixed-size payload.
func EncodeUpdate(dst []byte, u schema.BookUpdate) []byte {
	if cap(dst) < UpdatePayloadSize {
		dst = make([]byte, UpdatePayloadSize)
	} else {
		dst = dst[:UpdatePayloadSize]
	}
	clear(dst)

	binary.LittleEndian.PutUint16(dst[0:2], uint16(u.Symbol))
	dst[2] = byte(u.Kind)
	dst[3] = byte(u.Side)
	if u.Stale {
		dst[4] = updateFlagStale
	}
	binary.LittleEndian.PutUint32(dst[8:12], u.Seq)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(u.State.Bid.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(u.State.Bid.Qty))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(u.State.Ask.Price))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(u.State.Ask.Qty))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(u.State.LastTrade))
	binary.LittleEndian.PutUint64(dst[56:64], uint64(u.Price))
	binary.LittleEndian.PutUint64(dst[64:72], uint64(u.Qty))
	binary.LittleEndian.PutUint64(dst[72:80], uint64(u.IngressTs))
	binary.LittleEndian.PutUint64(dst[80:88], uint64(u.DecodeTs))

	return dst
}

// DecodeUpdate parses a fixed-size book update payload.
func DecodeUpdate(src []byte) (schema.BookUpdate, bool) {
	if len(src) < UpdatePayloadSize {
		return schema.BookUpdate{}, false
	}
	return schema.BookUpdate{
		Symbol: schema.SymbolIndex(binary.LittleEndian.Uint16(src[0:2])),
		Kind:   schema.Kind(src[2]),
		Side:   schema.Side(src[3]),
		Stale:  src[4]&updateFlagStale != 0,
		Seq:    binary.LittleEndian.Uint32(src[8:12]),
		State: schema.TopOfBook{
			Bid: schema.Quote{
				Price: schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
				Qty:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
			},
			Ask: schema.Quote{
				Price: schema.Price(int64(binary.LittleEndian.Uint64(src[32:40]))),
				Qty:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[40:48]))),
			},
			LastTrade: schema.Price(int64(binary.LittleEndian.Uint64(src[48:56]))),
		},
		Price:     schema.Price(int64(binary.LittleEndian.Uint64(src[56:64]))),
		Qty:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[64:72]))),
		IngressTs: int64(binary.LittleEndian.Uint64(src[72:80])),
		DecodeTs:  int64(binary.LittleEndian.Uint64(src[80:88])),
	}, true
}
