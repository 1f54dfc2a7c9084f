package core

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/book"
	"tob/internal/itch"
	"tob/internal/obs"
	"tob/internal/schema"
	"tob/internal/symbol"
	"tob/pkg/exception"
)

const testSymbols = 32

func newTable(t *testing.T) *symbol.Table {
	t.Helper()
	table := symbol.NewTable(64)
	stage := table.Stage()
	for i := 0; i < testSymbols; i++ {
		stock := schema.Stock{'S', byte('A' + i/26), byte('A' + i%26), ' ', ' ', ' ', ' ', ' '}
		require.NoError(t, stage.Add(symbol.Entry{Index: schema.SymbolIndex(i), Stock: stock, Locate: uint16(i + 1)}))
	}
	require.NoError(t, stage.Commit())
	return table
}

func newEngine(t *testing.T, cfg Config) (*Engine, *obs.Metrics) {
	t.Helper()
	metrics := obs.NewMetrics()
	e, err := New(cfg, newTable(t), metrics)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	return e, metrics
}

type feed struct {
	seq    uint32
	frames [][]byte
}

func (f *feed) push(m itch.Message) {
	f.frames = append(f.frames, itch.Encode(nil, m))
}

func (f *feed) submit(t *testing.T, e *Engine) {
	t.Helper()
	for _, frame := range f.frames {
		f.seq++
		_ = e.Submit(t.Context(), frame, itch.MetadataFor(frame, f.seq, 1))
	}
}

func randomFeed(r *rand.Rand, n int) *feed {
	f := &feed{}
	live := map[uint16][]uint64{}
	var ref uint64
	for i := 0; i < n; i++ {
		locate := uint16(r.Intn(testSymbols) + 1)
		h := itch.Header{Locate: locate, Timestamp: uint64(i)}
		orders := live[locate]
		switch op := r.Intn(10); {
		case op < 5 || len(orders) == 0:
			ref++
			side := byte('B')
			price := uint32(15000 - r.Intn(50))
			if r.Intn(2) == 0 {
				side = 'S'
				price = uint32(15050 + r.Intn(50))
			}
			f.push(itch.AddOrder{Header: h, OrderRef: ref, Side: side, Shares: uint32(r.Intn(500) + 1), Price: price})
			live[locate] = append(orders, ref)
		case op == 5:
			f.push(itch.Trade{Header: h, Side: 'B', Shares: 10, Price: uint32(15000 + r.Intn(50))})
		case op == 6:
			f.push(itch.OrderCancel{Header: h, OrderRef: orders[r.Intn(len(orders))], Canceled: uint32(r.Intn(200))})
		case op == 7:
			f.push(itch.OrderExecuted{Header: h, OrderRef: orders[r.Intn(len(orders))], Executed: uint32(r.Intn(200)), Match: uint64(i)})
		case op == 8:
			f.push(itch.OrderDelete{Header: h, OrderRef: orders[r.Intn(len(orders))]})
		default:
			ref++
			f.push(itch.OrderReplace{Header: h, OrderRef: orders[r.Intn(len(orders))], NewOrderRef: ref, Shares: uint32(r.Intn(300) + 1), Price: uint32(15000 + r.Intn(100))})
			live[locate] = append(orders, ref)
		}
	}
	return f
}

// reference applies the same frames with one decoder and one builder.
func reference(t *testing.T, f *feed) *book.Arena {
	t.Helper()
	arena := book.NewArena(64)
	builder := book.NewBuilder(arena, nil)
	decoder := itch.NewDecoder(newTable(t), nil)
	for i, frame := range f.frames {
		ev, err := decoder.Decode(frame, itch.MetadataFor(frame, uint32(i+1), 1))
		require.NoError(t, err)
		_, _ = builder.Apply(ev)
	}
	return arena
}

func TestEngineMatchesSequentialApply(t *testing.T) {
	e, metrics := newEngine(t, Config{Universe: 64, Shards: 4, QueueSize: 16})
	f := randomFeed(rand.New(rand.NewSource(7)), 20000)

	// the consumer stalls for the whole run
	f.submit(t, e)
	e.Stop()

	want := reference(t, f)
	delivered := map[schema.SymbolIndex]schema.BookUpdate{}
	for {
		u, ok := e.Mailbox().Pop()
		if !ok {
			break
		}
		delivered[u.Symbol] = u
	}

	for i := 0; i < testSymbols; i++ {
		idx := schema.SymbolIndex(i)
		exp, err := want.Snapshot(idx)
		require.NoError(t, err)
		got, err := e.Arena().Snapshot(idx)
		require.NoError(t, err)
		assert.Equal(t, exp, got, "symbol %d", i)

		u, ok := delivered[idx]
		require.True(t, ok, "no update delivered for symbol %d", i)
		assert.Equal(t, exp, u.State, "symbol %d delivered stale state", i)
	}

	assert.Equal(t, uint64(20000), metrics.Load(obs.CounterDecoded))
	assert.Equal(t, uint64(20000), metrics.Load(obs.CounterApplied))
	assert.Equal(t, uint64(testSymbols), metrics.Load(obs.CounterDelivered))
	assert.Equal(t, uint64(20000-testSymbols), metrics.Load(obs.CounterCoalesced))
	assert.Equal(t, uint64(0), metrics.Load(obs.CounterSeqGap))
}

func TestEngineLiveConsumer(t *testing.T) {
	e, _ := newEngine(t, Config{Universe: 64, Shards: 3})
	last := map[schema.SymbolIndex]schema.BookUpdate{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Mailbox().Run(t.Context(), func(u schema.BookUpdate) {
			if prev, ok := last[u.Symbol]; ok && u.Seq <= prev.Seq {
				t.Errorf("symbol %d seq went backwards: %d after %d", u.Symbol, u.Seq, prev.Seq)
			}
			last[u.Symbol] = u
		})
	}()

	f := randomFeed(rand.New(rand.NewSource(11)), 5000)
	f.submit(t, e)
	e.Stop()
	<-done

	want := reference(t, f)
	for idx, u := range last {
		exp, err := want.Snapshot(idx)
		require.NoError(t, err)
		assert.Equal(t, exp, u.State, "symbol %d", idx)
	}
}

func TestEngineUnresolvedPolicy(t *testing.T) {
	for _, policy := range []UnresolvedPolicy{UnresolvedDrop, UnresolvedPass} {
		t.Run(string(policy), func(t *testing.T) {
			e, metrics := newEngine(t, Config{Universe: 64, Shards: 2, Unresolved: policy})
			f := &feed{}
			f.push(itch.AddOrder{Header: itch.Header{Locate: 999}, OrderRef: 1, Side: 'B', Shares: 1, Price: 100})
			f.push(itch.AddOrder{Header: itch.Header{Locate: 1}, OrderRef: 2, Side: 'B', Shares: 1, Price: 100})
			f.submit(t, e)
			e.Stop()

			assert.Equal(t, uint64(1), metrics.Load(obs.CounterUnresolved))
			assert.Equal(t, uint64(1), metrics.Load(obs.CounterDropped))
			assert.Equal(t, uint64(1), metrics.Load(obs.CounterApplied))
			assert.Equal(t, 1, e.Mailbox().Pending())
		})
	}
}

func TestEngineMalformedAndSystem(t *testing.T) {
	e, metrics := newEngine(t, Config{Universe: 64, Shards: 2})

	bad := []byte{'Z', 0, 1}
	err := e.Submit(t.Context(), bad, itch.MetadataFor(bad, 1, 1))
	require.ErrorIs(t, err, exception.ErrUnknownMessageType)

	sys := itch.Encode(nil, itch.SystemEvent{EventCode: 'O'})
	require.NoError(t, e.Submit(t.Context(), sys, itch.MetadataFor(sys, 2, 1)))

	add := itch.Encode(nil, itch.AddOrder{Header: itch.Header{Locate: 1}, OrderRef: 1, Side: 'S', Shares: 5, Price: 15100})
	require.NoError(t, e.Submit(t.Context(), add, itch.MetadataFor(add, 3, 1)))
	e.Stop()

	assert.Equal(t, uint64(1), metrics.Load(obs.CounterMalformed))
	assert.Equal(t, uint64(1), metrics.Load(obs.CounterSystem))
	tob, err := e.Arena().Snapshot(0)
	require.NoError(t, err)
	assert.Equal(t, schema.Quote{Price: 15100, Qty: 5}, tob.Ask)
}

func TestEngineSequenceGap(t *testing.T) {
	e, metrics := newEngine(t, Config{Universe: 64, Shards: 1})
	frame := itch.Encode(nil, itch.Trade{Header: itch.Header{Locate: 1}, Side: 'B', Shares: 1, Price: 100})
	require.NoError(t, e.Submit(t.Context(), frame, itch.MetadataFor(frame, 1, 1)))
	require.NoError(t, e.Submit(t.Context(), frame, itch.MetadataFor(frame, 2, 1)))
	require.NoError(t, e.Submit(t.Context(), frame, itch.MetadataFor(frame, 5, 1)))
	e.Stop()

	assert.Equal(t, uint64(1), metrics.Load(obs.CounterSeqGap))
	u, ok := e.Mailbox().Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(5), u.Seq)
	assert.True(t, u.Stale)
}

func TestEngineConfig(t *testing.T) {
	_, err := New(Config{Shards: -1}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{Unresolved: "keep"}, nil, nil)
	require.Error(t, err)

	e, err := New(Config{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), e.Config())
	assert.NotEqual(t, e.Session().String(), "")
	require.NoError(t, e.Start())
	require.Error(t, e.Start())
	e.Stop()
}

func TestEngineCountsFullInbox(t *testing.T) {
	metrics := obs.NewMetrics()
	e, err := New(Config{Universe: 64, Shards: 1, QueueSize: 1}, newTable(t), metrics)
	require.NoError(t, err)

	add := itch.Encode(nil, itch.AddOrder{Header: itch.Header{Locate: 1}, OrderRef: 1, Side: 'B', Shares: 5, Price: 15000})
	require.NoError(t, e.Submit(t.Context(), add, itch.MetadataFor(add, 1, 1)))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = e.Submit(ctx, add, itch.MetadataFor(add, 2, 1))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(1), metrics.Load(obs.CounterQueueFull))
}
