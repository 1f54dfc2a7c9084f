package symbol

import (
	"sync/atomic"

	"tob/internal/schema"
)

// Entry maps a locate code and stock field to a dense index.
// Locate 0 means the entry is reachable by stock only.
type Entry struct {
	Index  schema.SymbolIndex
	Stock  schema.Stock
	Locate uint16
}

type snapshot struct {
	version  uint64
	byLocate map[uint16]schema.SymbolIndex
	byStock  map[schema.Stock]schema.SymbolIndex
	byIndex  map[schema.SymbolIndex]Entry
}

var emptySnapshot = &snapshot{
	byLocate: map[uint16]schema.SymbolIndex{},
	byStock:  map[schema.Stock]schema.SymbolIndex{},
	byIndex:  map[schema.SymbolIndex]Entry{},
}

// Table resolves locate codes to dense symbol indexes.
//
// Lookups read an immutable snapshot. Commit publishes a new snapshot with a
// single pointer swap, so a lookup racing a reload sees either the old or the
// new mapping.
type Table struct {
	universe int
	cur      atomic.Pointer[snapshot]
}

// NewTable creates an empty table for a universe of the given size.
func NewTable(universe int) *Table {
	if universe <= 0 || universe > int(schema.SentinelIndex) {
		universe = schema.DefaultUniverse
	}
	t := &Table{universe: universe}
	t.cur.Store(emptySnapshot)
	return t
}

// Universe returns the number of symbol slots.
func (t *Table) Universe() int {
	return t.universe
}

// Resolve returns the index mapped to locate.
func (t *Table) Resolve(locate uint16) (schema.SymbolIndex, bool) {
	idx, ok := t.cur.Load().byLocate[locate]
	return idx, ok
}

// ResolveStock returns the index mapped to a stock field.
func (t *Table) ResolveStock(stock schema.Stock) (schema.SymbolIndex, bool) {
	idx, ok := t.cur.Load().byStock[stock]
	return idx, ok
}

// Lookup returns the entry stored at index.
func (t *Table) Lookup(index schema.SymbolIndex) (Entry, bool) {
	e, ok := t.cur.Load().byIndex[index]
	return e, ok
}

// Len returns the number of mapped symbols.
func (t *Table) Len() int {
	return len(t.cur.Load().byIndex)
}

// Version increments on every commit.
func (t *Table) Version() uint64 {
	return t.cur.Load().version
}

// Stage returns an empty staging area. Committing it replaces the whole table.
func (t *Table) Stage() *Staging {
	return newStaging(t)
}

func (t *Table) publish(s *snapshot) {
	s.version = t.cur.Load().version + 1
	t.cur.Store(s)
}
