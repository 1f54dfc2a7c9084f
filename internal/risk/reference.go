package risk

import (
	"encoding/csv"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"tob/internal/schema"
	"tob/pkg/exception"
)

// References holds per-symbol reference prices. Reads never block; Store swaps
// the whole set.
type References struct {
	prices atomic.Pointer[map[schema.SymbolIndex]schema.Price]
}

func NewReferences(prices map[schema.SymbolIndex]schema.Price) *References {
	r := &References{}
	r.Store(prices)
	return r
}

func (r *References) Store(prices map[schema.SymbolIndex]schema.Price) {
	cp := maps.Clone(prices)
	if cp == nil {
		cp = map[schema.SymbolIndex]schema.Price{}
	}
	r.prices.Store(&cp)
}

func (r *References) Get(idx schema.SymbolIndex) (schema.Price, bool) {
	if r == nil {
		return 0, false
	}
	p, ok := (*r.prices.Load())[idx]
	return p, ok
}

func (r *References) Len() int {
	if r == nil {
		return 0
	}
	return len(*r.prices.Load())
}

// Reference returns the configured price of idx, falling back to the mid of
// state when both sides are quoted.
func (r *References) Reference(idx schema.SymbolIndex, state schema.TopOfBook) schema.Price {
	if p, ok := r.Get(idx); ok {
		return p
	}
	if state.Bid.Empty() || state.Ask.Empty() {
		return 0
	}
	return (state.Bid.Price + state.Ask.Price) / 2
}

// LoadPrices parses "INDEX,PRICE" lines with prices in decimal dollars.
func LoadPrices(r io.Reader) (map[schema.SymbolIndex]schema.Price, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	out := make(map[schema.SymbolIndex]schema.Price)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read reference prices")
		}
		line, _ := reader.FieldPos(0)
		if len(record) != 2 {
			return nil, errors.Wrapf(exception.ErrPriceFormat, "line %d: want INDEX,PRICE", line)
		}
		idx, err := strconv.ParseUint(strings.TrimSpace(record[0]), 10, 16)
		if err != nil {
			return nil, errors.Wrapf(exception.ErrPriceFormat, "line %d: index %q", line, record[0])
		}
		price, err := schema.ParsePrice(strings.TrimSpace(record[1]))
		if err != nil || price <= 0 {
			return nil, errors.Wrapf(exception.ErrPriceFormat, "line %d: price %q", line, record[1])
		}
		out[schema.SymbolIndex(idx)] = price
	}
}

// LoadPricesFile reads a reference price file.
func LoadPricesFile(path string) (map[schema.SymbolIndex]schema.Price, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open reference prices")
	}
	defer f.Close()
	return LoadPrices(f)
}
