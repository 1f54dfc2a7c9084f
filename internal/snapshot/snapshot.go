// Package snapshot persists the current top of book of every quoted symbol.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/yanun0323/errors"

	"tob/internal/book"
	"tob/internal/schema"
	"tob/internal/symbol"
)

// Snapshot captures the arena at a point in time.
type Snapshot struct {
	Session   string  `json:"session"`
	Timestamp int64   `json:"timestamp"`
	LastSeq   uint32  `json:"lastSeq"`
	Books     []Entry `json:"books"`
}

// Entry is one symbol's top of book. Prices carry four implied decimals.
type Entry struct {
	Symbol    schema.SymbolIndex `json:"symbol"`
	Stock     string             `json:"stock,omitempty"`
	BidPrice  schema.Price       `json:"bidPrice"`
	BidQty    schema.Quantity    `json:"bidQty"`
	AskPrice  schema.Price       `json:"askPrice"`
	AskQty    schema.Quantity    `json:"askQty"`
	LastTrade schema.Price       `json:"lastTrade"`
}

// State converts the entry back to book state.
func (e Entry) State() schema.TopOfBook {
	return schema.TopOfBook{
		Bid:       schema.Quote{Price: e.BidPrice, Qty: e.BidQty},
		Ask:       schema.Quote{Price: e.AskPrice, Qty: e.AskQty},
		LastTrade: e.LastTrade,
	}
}

// Namer resolves symbol names for display.
type Namer interface {
	Lookup(idx schema.SymbolIndex) (symbol.Entry, bool)
}

// Capture reads every non-empty slot of the arena. names may be nil.
func Capture(arena *book.Arena, names Namer, session string, lastSeq uint32) Snapshot {
	snap := Snapshot{
		Session:   session,
		Timestamp: time.Now().UTC().UnixNano(),
		LastSeq:   lastSeq,
	}
	arena.Range(func(idx schema.SymbolIndex, tob schema.TopOfBook) bool {
		entry := Entry{
			Symbol:    idx,
			BidPrice:  tob.Bid.Price,
			BidQty:    tob.Bid.Qty,
			AskPrice:  tob.Ask.Price,
			AskQty:    tob.Ask.Qty,
			LastTrade: tob.LastTrade,
		}
		if names != nil {
			if e, ok := names.Lookup(idx); ok {
				entry.Stock = e.Stock.String()
			}
		}
		snap.Books = append(snap.Books, entry)
		return true
	})
	return snap
}

// Restore seeds the arena from a snapshot. Call it before builders start.
func Restore(arena *book.Arena, snap Snapshot) error {
	for _, entry := range snap.Books {
		if err := arena.Restore(entry.Symbol, entry.State()); err != nil {
			return errors.Wrapf(err, "restore symbol %d", entry.Symbol)
		}
	}
	return nil
}

// WriteSnapshot writes a snapshot to disk as JSON. The file is replaced atomically.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create snapshot dir")
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "read snapshot")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "unmarshal snapshot")
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same books.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Books) != len(actual.Books) {
		return errors.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Books), len(actual.Books))
	}
	expectedMap := make(map[schema.SymbolIndex]schema.TopOfBook, len(expected.Books))
	for _, entry := range expected.Books {
		expectedMap[entry.Symbol] = entry.State()
	}
	for _, entry := range actual.Books {
		want, ok := expectedMap[entry.Symbol]
		if !ok {
			return errors.Errorf("snapshot missing symbol: %d", entry.Symbol)
		}
		if got := entry.State(); want != got {
			return errors.Errorf("snapshot book mismatch: symbol=%d expected=%+v actual=%+v", entry.Symbol, want, got)
		}
	}
	return nil
}
