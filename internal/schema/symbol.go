package schema

import (
	"encoding/binary"
	"strings"

	"tob/pkg/exception"
)

// DefaultUniverse is the default number of symbol slots.
const DefaultUniverse = 1024

// SymbolIndex is the dense internal index of a symbol.
type SymbolIndex uint16

// SentinelIndex is attached to events whose locate code did not resolve.
const SentinelIndex SymbolIndex = 0xFFFF

// StockLen is the width of the ITCH stock field.
const StockLen = 8

// Stock is the space padded ASCII stock field.
type Stock [StockLen]byte

// BlankStock is an all-space stock field.
var BlankStock = Stock{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// NewStock pads s with spaces to StockLen.
func NewStock(s string) (Stock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Stock{}, exception.ErrSymbolEmpty
	}
	if len(s) > StockLen {
		return Stock{}, exception.ErrSymbolTooLong
	}
	st := BlankStock
	copy(st[:], s)
	return st, nil
}

// MustStock is NewStock for constants and tests.
func MustStock(s string) Stock {
	st, err := NewStock(s)
	if err != nil {
		panic(err)
	}
	return st
}

// StockFromPacked unpacks the register representation.
func StockFromPacked(v uint64) Stock {
	var st Stock
	binary.LittleEndian.PutUint64(st[:], v)
	for i := range st {
		if st[i] == 0 {
			st[i] = ' '
		}
	}
	return st
}

// Packed returns the stock as a little-endian uint64, the layout written to the
// symbol table registers.
func (s Stock) Packed() uint64 {
	return binary.LittleEndian.Uint64(s[:])
}

// IsZero reports whether the field carries no symbol.
func (s Stock) IsZero() bool {
	return s == Stock{} || s == BlankStock
}

func (s Stock) String() string {
	return strings.TrimRight(string(s[:]), " \x00")
}
