package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/schema"
)

func TestCRC16CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), CRC16([]byte("123456789")))
	assert.Equal(t, uint16(0xFFFF), CRC16(nil))
}

func TestRecordLayout(t *testing.T) {
	r := Record{
		Seq:       7,
		LastTrade: 1501000,
		TsIngress: 1_000,
		TsDecode:  1_250,
		Symbol:    42,
		Side:      SideAsk,
		Flags:     PackFlags(true, true, ReasonRate),
		Imbalance: 4000,
		Qty:       300,
		Price:     1502500,
		RefPrice:  1500000,
		Feature0:  13,
		OppQty:    100,
		OppPrice:  1500500,
	}
	buf := EncodeRecord(nil, r)
	require.Len(t, buf, RecordSize)

	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, uint32(1501000), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, uint64(1_000), binary.LittleEndian.Uint64(buf[8:16]))
	assert.Equal(t, uint64(1_250), binary.LittleEndian.Uint64(buf[16:24]))
	assert.Equal(t, uint16(42), binary.LittleEndian.Uint16(buf[24:26]))
	assert.Equal(t, SideAsk, buf[26])
	assert.Equal(t, uint8(0b01011), buf[27])
	assert.Equal(t, uint32(4000), binary.LittleEndian.Uint32(buf[28:32]))
	assert.Equal(t, uint32(300), binary.LittleEndian.Uint32(buf[32:36]))
	assert.Equal(t, uint32(1502500), binary.LittleEndian.Uint32(buf[36:40]))
	assert.Equal(t, uint32(1500000), binary.LittleEndian.Uint32(buf[40:44]))
	assert.Equal(t, uint32(13), binary.LittleEndian.Uint32(buf[44:48]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(buf[48:52]))
	assert.Equal(t, uint32(1500500), binary.LittleEndian.Uint32(buf[52:56]))
	assert.Equal(t, make([]byte, 6), buf[58:64])
	assert.True(t, VerifyRecord(buf))

	got, ok := DecodeRecord(buf)
	require.True(t, ok)
	r.CRC = got.CRC
	assert.Equal(t, r, got)
	assert.True(t, got.Stale())
	assert.True(t, got.Accepted())
	assert.Equal(t, ReasonRate, got.Reason())
	assert.Equal(t, uint64(250), got.Latency())
	assert.Equal(t, schema.TopOfBook{
		Bid:       schema.Quote{Price: 1500500, Qty: 100},
		Ask:       schema.Quote{Price: 1502500, Qty: 300},
		LastTrade: 1501000,
	}, got.State())
}

func TestRecordCorruption(t *testing.T) {
	buf := EncodeRecord(nil, Record{Seq: 1, Price: 100})
	buf[36] ^= 0xFF
	assert.False(t, VerifyRecord(buf))

	_, ok := DecodeRecord(buf[:RecordSize-1])
	assert.False(t, ok)
	assert.False(t, VerifyRecord(buf[:10]))
}

func TestLatencyNeverNegative(t *testing.T) {
	assert.Zero(t, Record{TsIngress: 500, TsDecode: 400}.Latency())
	assert.Zero(t, Record{TsIngress: 500, TsDecode: 500}.Latency())
}

func TestNewRecordFromUpdate(t *testing.T) {
	u := schema.BookUpdate{
		Symbol: 3,
		Seq:    11,
		State: schema.TopOfBook{
			Bid: schema.Quote{Price: 1000000, Qty: 100},
			Ask: schema.Quote{Price: 1000200, Qty: 300},
		},
		Side:      schema.SideAsk,
		IngressTs: 10,
		DecodeTs:  25,
		Stale:     true,
	}
	r := NewRecord(u, 1000100, false, ReasonPriceBand)
	assert.Equal(t, uint16(3), r.Symbol)
	assert.Equal(t, SideAsk, r.Side)
	assert.Equal(t, uint32(1000200), r.Price)
	assert.Equal(t, uint32(300), r.Qty)
	assert.Equal(t, uint32(1000100), r.RefPrice)
	assert.Equal(t, uint32(1), r.SpreadBps())
	assert.Equal(t, uint32(2500), r.Imbalance)
	assert.Equal(t, uint32(1000000), r.OppPrice)
	assert.Equal(t, uint32(100), r.OppQty)
	assert.Equal(t, u.State, r.State())
	assert.True(t, r.Stale())
	assert.False(t, r.Accepted())
	assert.Equal(t, ReasonPriceBand, r.Reason())
	assert.Equal(t, uint64(15), r.Latency())

	u.Side = schema.SideNone
	u.State.LastTrade = 1000100
	r = NewRecord(u, 0, true, ReasonNone)
	assert.Equal(t, SideNone, r.Side)
	assert.Equal(t, uint32(1000000), r.Price)
	assert.Equal(t, uint32(1000200), r.OppPrice)
	assert.Equal(t, u.State, r.State())
}

func TestUpdateRoundTrip(t *testing.T) {
	u := schema.BookUpdate{
		Symbol: 9,
		Seq:    100,
		State: schema.TopOfBook{
			Bid:       schema.Quote{Price: 990000, Qty: 10},
			Ask:       schema.Quote{Price: 1010000, Qty: 20},
			LastTrade: 1000000,
		},
		Kind:      schema.KindExecute,
		Side:      schema.SideBid,
		Price:     990000,
		Qty:       5,
		IngressTs: 1,
		DecodeTs:  2,
		Stale:     true,
	}
	got, ok := DecodeUpdate(EncodeUpdate(make([]byte, 0, UpdatePayloadSize), u))
	require.True(t, ok)
	assert.Equal(t, u, got)

	_, ok = DecodeUpdate(make([]byte, UpdatePayloadSize-1))
	assert.False(t, ok)
}
