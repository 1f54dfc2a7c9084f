package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tob/internal/book"
	"tob/internal/bus"
	"tob/internal/itch"
	"tob/internal/mailbox"
	"tob/internal/obs"
	"tob/internal/schema"
)

type shard struct {
	id      int
	inbox   *bus.Queue[schema.Event]
	builder *book.Builder
}

// Engine wires decoder, shards and mailbox together.
type Engine struct {
	cfg     Config
	session uuid.UUID
	metrics *obs.Metrics
	decoder *itch.Decoder
	arena   *book.Arena
	mailbox *mailbox.Mailbox
	shards  []shard

	lastSeq uint32
	started atomic.Bool
	wg      sync.WaitGroup
}

// New builds an engine. metrics may be nil.
func New(cfg Config, resolver itch.Resolver, metrics *obs.Metrics, opts ...itch.Option) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	arena := book.NewArena(cfg.Universe)
	e := &Engine{
		cfg:     cfg,
		session: uuid.New(),
		metrics: metrics,
		decoder: itch.NewDecoder(resolver, metrics, opts...),
		arena:   arena,
		mailbox: mailbox.New(cfg.Universe, metrics),
		shards:  make([]shard, cfg.Shards),
	}
	for i := range e.shards {
		e.shards[i] = shard{
			id:      i,
			inbox:   bus.NewQueue[schema.Event](cfg.QueueSize),
			builder: book.NewBuilder(arena, metrics, book.WithShard(i, cfg.Shards)),
		}
	}
	return e, nil
}

// Session identifies this engine instance in snapshots and published updates.
func (e *Engine) Session() uuid.UUID {
	return e.session
}

// Arena exposes book state for snapshot readers.
func (e *Engine) Arena() *book.Arena {
	return e.arena
}

// Mailbox is where book updates are delivered.
func (e *Engine) Mailbox() *mailbox.Mailbox {
	return e.mailbox
}

// Config returns the effective config.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start launches one goroutine per shard. Shards run until Stop.
func (e *Engine) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}
	for i := range e.shards {
		sh := &e.shards[i]
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			sh.inbox.Drain(e.applyFunc(sh))
			logs.Infof("shard %d stopped, orders tracked: %d", sh.id, sh.builder.Orders())
		}()
	}
	return nil
}

func (e *Engine) applyFunc(sh *shard) func(schema.Event) {
	return func(ev schema.Event) {
		upd, err := sh.builder.Apply(ev)
		if err != nil {
			return
		}
		e.mailbox.Put(upd)
	}
}

// Stop closes shard inboxes, waits until queued events are applied and then
// closes the mailbox. Submit must not be called after Stop.
func (e *Engine) Stop() {
	for i := range e.shards {
		e.shards[i].inbox.Close()
	}
	e.wg.Wait()
	e.mailbox.Close()
}

// Submit decodes one frame and routes the event to its shard. It must be
// called from a single goroutine in arrival order. Errors are already
// counted; the caller moves on to the next frame.
func (e *Engine) Submit(ctx context.Context, frame []byte, meta itch.Metadata) error {
	stale := e.checkSeq(meta.Seq)

	ev, err := e.decoder.Decode(frame, meta)
	if err != nil {
		return err
	}
	if stale {
		ev.Flags |= schema.FlagStale
	}
	return e.route(ctx, ev)
}

func (e *Engine) checkSeq(seq uint32) bool {
	last := e.lastSeq
	e.lastSeq = seq
	if last == 0 || seq == last+1 {
		return false
	}
	e.metrics.Inc(obs.CounterSeqGap)
	return true
}

func (e *Engine) route(ctx context.Context, ev schema.Event) error {
	if ev.Kind == schema.KindSystem {
		e.metrics.Inc(obs.CounterSystem)
		return nil
	}
	if !ev.Resolved && e.cfg.Unresolved == UnresolvedDrop {
		e.metrics.Inc(obs.CounterDropped)
		return nil
	}

	sh := &e.shards[int(ev.Symbol)%len(e.shards)]
	err := sh.inbox.TryPublish(ev)
	if errors.Is(err, bus.ErrQueueFull) {
		e.metrics.Inc(obs.CounterQueueFull)
		err = sh.inbox.Publish(ctx, ev)
	}
	return err
}
