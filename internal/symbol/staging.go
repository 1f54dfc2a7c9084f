package symbol

import (
	"sync"

	"github.com/yanun0323/errors"

	"tob/internal/schema"
	"tob/pkg/exception"
)

// Staging collects entries before they are published to a Table.
// It also serves as the sink for the register load path: Stage is called on
// the enable pulse and Commit on the commit strobe.
type Staging struct {
	table *Table

	mu       sync.Mutex
	byIndex  map[schema.SymbolIndex]Entry
	byLocate map[uint16]schema.SymbolIndex
	byStock  map[schema.Stock]schema.SymbolIndex
}

func newStaging(t *Table) *Staging {
	return &Staging{
		table:    t,
		byIndex:  make(map[schema.SymbolIndex]Entry),
		byLocate: make(map[uint16]schema.SymbolIndex),
		byStock:  make(map[schema.Stock]schema.SymbolIndex),
	}
}

// Add stages one entry. Re-adding the same index replaces the previous entry.
func (s *Staging) Add(e Entry) error {
	if int(e.Index) >= s.table.universe {
		return errors.Wrapf(exception.ErrSymbolOutOfRange, "stage symbol index %d, universe %d", e.Index, s.table.universe)
	}
	if e.Stock.IsZero() && e.Locate == 0 {
		return errors.Wrap(exception.ErrSymbolEmpty, "stage symbol").With("index", e.Index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Locate != 0 {
		if idx, ok := s.byLocate[e.Locate]; ok && idx != e.Index {
			return errors.Wrapf(exception.ErrSymbolDuplicate, "locate %d already mapped to index %d", e.Locate, idx)
		}
	}
	if !e.Stock.IsZero() {
		if idx, ok := s.byStock[e.Stock]; ok && idx != e.Index {
			return errors.Wrapf(exception.ErrSymbolDuplicate, "stock %s already mapped to index %d", e.Stock, idx)
		}
	}

	if prev, ok := s.byIndex[e.Index]; ok {
		delete(s.byLocate, prev.Locate)
		delete(s.byStock, prev.Stock)
	}
	s.byIndex[e.Index] = e
	if e.Locate != 0 {
		s.byLocate[e.Locate] = e.Index
	}
	if !e.Stock.IsZero() {
		s.byStock[e.Stock] = e.Index
	}
	return nil
}

// AddAll stages entries in order and stops at the first error.
func (s *Staging) AddAll(entries []Entry) error {
	for _, e := range entries {
		if err := s.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Stage stages a register tuple (index, packed stock).
func (s *Staging) Stage(index uint16, packed uint64) error {
	return s.Add(Entry{Index: schema.SymbolIndex(index), Stock: schema.StockFromPacked(packed)})
}

// Len returns the number of staged entries.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byIndex)
}

// Commit publishes the staged entries and resets the staging area.
func (s *Staging) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &snapshot{
		byLocate: s.byLocate,
		byStock:  s.byStock,
		byIndex:  s.byIndex,
	}
	s.table.publish(snap)

	s.byIndex = make(map[schema.SymbolIndex]Entry)
	s.byLocate = make(map[uint16]schema.SymbolIndex)
	s.byStock = make(map[schema.Stock]schema.SymbolIndex)
	return nil
}
