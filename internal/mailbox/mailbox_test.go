package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/obs"
	"tob/internal/schema"
)

func update(sym schema.SymbolIndex, seq uint32, bid schema.Price) schema.BookUpdate {
	return schema.BookUpdate{
		Symbol: sym,
		Seq:    seq,
		State:  schema.TopOfBook{Bid: schema.Quote{Price: bid, Qty: 1}},
	}
}

func TestMailboxCoalesces(t *testing.T) {
	metrics := obs.NewMetrics()
	m := New(8, metrics)

	require.True(t, m.Put(update(1, 1, 100)))
	require.True(t, m.Put(update(2, 2, 200)))
	require.True(t, m.Put(update(1, 3, 101)))
	require.True(t, m.Put(update(1, 4, 102)))
	assert.Equal(t, 2, m.Pending())
	assert.Equal(t, uint64(2), metrics.Load(obs.CounterCoalesced))

	u, ok := m.TryPop()
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(1), u.Symbol)
	assert.Equal(t, uint32(4), u.Seq)
	assert.Equal(t, schema.Price(102), u.State.Bid.Price)

	u, ok = m.TryPop()
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(2), u.Symbol)

	_, ok = m.TryPop()
	assert.False(t, ok)
	assert.Equal(t, uint64(2), metrics.Load(obs.CounterDelivered))

	// delivered symbols queue again on the next change
	require.True(t, m.Put(update(1, 5, 103)))
	assert.Equal(t, 1, m.Pending())
}

func TestMailboxRejects(t *testing.T) {
	m := New(4, nil)
	assert.False(t, m.Put(update(4, 1, 1)))
	require.True(t, m.Put(update(3, 1, 1)))
	m.Close()
	m.Close()
	assert.False(t, m.Put(update(2, 1, 1)))

	// pending updates survive Close
	u, ok := m.Pop()
	require.True(t, ok)
	assert.Equal(t, schema.SymbolIndex(3), u.Symbol)
	_, ok = m.Pop()
	assert.False(t, ok)
}

// A stalled consumer sees the final state of every symbol that changed and
// never a stale one once it catches up.
func TestMailboxBackpressure(t *testing.T) {
	const symbols = 16
	const perSymbol = 500
	m := New(symbols, nil)

	var wg sync.WaitGroup
	for s := 0; s < symbols; s++ {
		wg.Add(1)
		go func(sym schema.SymbolIndex) {
			defer wg.Done()
			for i := 1; i <= perSymbol; i++ {
				m.Put(update(sym, uint32(i), schema.Price(i)))
			}
		}(schema.SymbolIndex(s))
	}

	latest := make(map[schema.SymbolIndex]uint32)
	var delivered int
	consume := func(u schema.BookUpdate) {
		delivered++
		require.Greater(t, u.Seq, latest[u.Symbol], "symbol %d went backwards", u.Symbol)
		latest[u.Symbol] = u.Seq
	}

	// stall, then drain while producers may still be running
	time.Sleep(5 * time.Millisecond)
	for {
		u, ok := m.TryPop()
		if !ok {
			break
		}
		consume(u)
	}
	wg.Wait()
	for {
		u, ok := m.TryPop()
		if !ok {
			break
		}
		consume(u)
	}

	require.Len(t, latest, symbols)
	for s := 0; s < symbols; s++ {
		assert.Equal(t, uint32(perSymbol), latest[schema.SymbolIndex(s)])
	}
	assert.LessOrEqual(t, delivered, symbols*perSymbol)
}

func TestMailboxRun(t *testing.T) {
	m := New(4, nil)
	got := make(chan schema.BookUpdate, 4)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, func(u schema.BookUpdate) { got <- u })
	}()

	require.True(t, m.Put(update(0, 1, 1)))
	select {
	case u := <-got:
		assert.Equal(t, uint32(1), u.Seq)
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
