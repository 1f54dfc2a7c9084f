package symbol

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/schema"
	"tob/pkg/exception"
)

func TestTableResolve(t *testing.T) {
	table := NewTable(16)
	stage := table.Stage()
	require.NoError(t, stage.Add(Entry{Index: 0, Stock: schema.MustStock("AAPL"), Locate: 1}))
	require.NoError(t, stage.Add(Entry{Index: 1, Stock: schema.MustStock("MSFT"), Locate: 2}))

	_, ok := table.Resolve(1)
	assert.False(t, ok, "staged entries are invisible before commit")

	require.NoError(t, stage.Commit())
	assert.Equal(t, uint64(1), table.Version())
	assert.Equal(t, 2, table.Len())

	idx, ok := table.Resolve(2)
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(1), idx)

	idx, ok = table.ResolveStock(schema.MustStock("AAPL"))
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(0), idx)

	_, ok = table.Resolve(99)
	assert.False(t, ok)

	entry, ok := table.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "MSFT", entry.Stock.String())
}

func TestStagingRejects(t *testing.T) {
	table := NewTable(4)
	stage := table.Stage()

	err := stage.Add(Entry{Index: 4, Stock: schema.MustStock("X"), Locate: 1})
	require.ErrorIs(t, err, exception.ErrSymbolOutOfRange)

	err = stage.Add(Entry{Index: 0})
	require.ErrorIs(t, err, exception.ErrSymbolEmpty)

	require.NoError(t, stage.Add(Entry{Index: 0, Stock: schema.MustStock("A"), Locate: 7}))
	err = stage.Add(Entry{Index: 1, Stock: schema.MustStock("B"), Locate: 7})
	require.ErrorIs(t, err, exception.ErrSymbolDuplicate)
	err = stage.Add(Entry{Index: 2, Stock: schema.MustStock("A"), Locate: 8})
	require.ErrorIs(t, err, exception.ErrSymbolDuplicate)

	// re-adding an index replaces its previous keys
	require.NoError(t, stage.Add(Entry{Index: 0, Stock: schema.MustStock("C"), Locate: 9}))
	require.NoError(t, stage.Commit())
	_, ok := table.Resolve(7)
	assert.False(t, ok)
	idx, ok := table.Resolve(9)
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(0), idx)
}

func TestStagingRegisterTuple(t *testing.T) {
	table := NewTable(8)
	stage := table.Stage()
	stock := schema.MustStock("GOOGL")
	require.NoError(t, stage.Stage(3, stock.Packed()))
	require.NoError(t, stage.Commit())

	idx, ok := table.ResolveStock(stock)
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(3), idx)
}

func TestCommitReplacesTable(t *testing.T) {
	table := NewTable(8)
	first := table.Stage()
	require.NoError(t, first.Add(Entry{Index: 0, Stock: schema.MustStock("OLD"), Locate: 1}))
	require.NoError(t, first.Commit())

	second := table.Stage()
	require.NoError(t, second.Add(Entry{Index: 5, Stock: schema.MustStock("NEW"), Locate: 2}))
	require.NoError(t, second.Commit())

	_, ok := table.Resolve(1)
	assert.False(t, ok)
	idx, ok := table.Resolve(2)
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(5), idx)
	assert.Equal(t, uint64(2), table.Version())
}

func TestResolveDuringReload(t *testing.T) {
	table := NewTable(8)
	load := func(index schema.SymbolIndex) error {
		stage := table.Stage()
		if err := stage.Add(Entry{Index: index, Stock: schema.MustStock("SYM"), Locate: 1}); err != nil {
			return err
		}
		return stage.Commit()
	}
	require.NoError(t, load(1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			assert.NoError(t, load(schema.SymbolIndex(1+i%2)))
		}
	}()

	for i := 0; i < 10000; i++ {
		idx, ok := table.Resolve(1)
		require.True(t, ok)
		require.True(t, idx == 1 || idx == 2, "unexpected index %d", idx)
	}
	wg.Wait()
}

func TestLoadCSV(t *testing.T) {
	input := `# symbol table
AAPL,0,1
MSFT, 1, 2

TSLA,2
`
	entries, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Index: 0, Stock: schema.MustStock("AAPL"), Locate: 1}, entries[0])
	assert.Equal(t, Entry{Index: 1, Stock: schema.MustStock("MSFT"), Locate: 2}, entries[1])
	assert.Equal(t, Entry{Index: 2, Stock: schema.MustStock("TSLA")}, entries[2])
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("AAPL\n"))
	require.ErrorIs(t, err, exception.ErrSymbolFormat)

	_, err = LoadCSV(strings.NewReader("AAPL,x\n"))
	require.ErrorIs(t, err, exception.ErrSymbolFormat)

	_, err = LoadCSV(strings.NewReader("TOOLONGSYM,1\n"))
	require.ErrorIs(t, err, exception.ErrSymbolTooLong)
}
