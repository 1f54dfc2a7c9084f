package itch

import "encoding/binary"

// Encode appends the wire form of m to dst.
func Encode(dst []byte, m Message) []byte {
	return m.AppendTo(dst)
}

func appendHeader(dst []byte, msgType byte, h Header) []byte {
	dst = append(dst, msgType)
	dst = binary.BigEndian.AppendUint16(dst, h.Locate)
	dst = binary.BigEndian.AppendUint16(dst, h.Tracking)
	return binary.BigEndian.AppendUint64(dst, h.Timestamp)
}

func (m AddOrder) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, m.Type(), m.Header)
	dst = binary.BigEndian.AppendUint64(dst, m.OrderRef)
	dst = append(dst, m.Side)
	dst = binary.BigEndian.AppendUint32(dst, m.Shares)
	dst = append(dst, m.Stock[:]...)
	dst = binary.BigEndian.AppendUint32(dst, m.Price)
	if m.WithMPID {
		dst = append(dst, m.MPID[:]...)
	}
	return dst
}

func (m OrderExecuted) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeOrderExecuted, m.Header)
	dst = binary.BigEndian.AppendUint64(dst, m.OrderRef)
	dst = binary.BigEndian.AppendUint32(dst, m.Executed)
	return binary.BigEndian.AppendUint64(dst, m.Match)
}

func (m OrderCancel) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeOrderCancel, m.Header)
	dst = binary.BigEndian.AppendUint64(dst, m.OrderRef)
	return binary.BigEndian.AppendUint32(dst, m.Canceled)
}

func (m OrderDelete) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeOrderDelete, m.Header)
	return binary.BigEndian.AppendUint64(dst, m.OrderRef)
}

func (m OrderReplace) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeOrderReplace, m.Header)
	dst = binary.BigEndian.AppendUint64(dst, m.OrderRef)
	dst = binary.BigEndian.AppendUint64(dst, m.NewOrderRef)
	dst = binary.BigEndian.AppendUint32(dst, m.Shares)
	return binary.BigEndian.AppendUint32(dst, m.Price)
}

func (m Trade) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeTrade, m.Header)
	dst = binary.BigEndian.AppendUint64(dst, m.OrderRef)
	dst = append(dst, m.Side)
	dst = binary.BigEndian.AppendUint32(dst, m.Shares)
	dst = append(dst, m.Stock[:]...)
	dst = binary.BigEndian.AppendUint32(dst, m.Price)
	return binary.BigEndian.AppendUint64(dst, m.Match)
}

func (m SystemEvent) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeSystemEvent, m.Header)
	return append(dst, m.EventCode)
}
