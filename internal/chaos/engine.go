package chaos

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"
)

// Config controls fault injection on a stream of ITCH frames.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
	// CorruptRate truncates a frame by one byte, which the decoder rejects as
	// a length mismatch.
	CorruptRate float64
}

// Stats counts what the engine did to the stream.
type Stats struct {
	In         int
	Out        int
	Dropped    int
	Duplicated int
	Corrupted  int
}

// Engine applies chaos rules to frames. Frames passed in are copied.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending [][]byte
	stats   Stats
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	for name, rate := range map[string]float64{
		"drop rate":      c.DropRate,
		"duplicate rate": c.DuplicateRate,
		"corrupt rate":   c.CorruptRate,
	} {
		if rate < 0 || rate > 1 {
			return errors.Errorf("%s must be between 0 and 1, got %v", name, rate)
		}
	}
	if c.ReorderWindow <= 0 {
		return errors.New("reorder window must be >= 1")
	}
	return nil
}

// Enabled reports whether any rule can change the stream.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.CorruptRate > 0 || c.ReorderWindow > 1
}

// Stats returns the counts so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Process applies chaos to a single frame and returns the frames to emit.
func (e *Engine) Process(frame []byte) [][]byte {
	if e == nil {
		return [][]byte{frame}
	}
	e.stats.In++
	if e.hit(e.cfg.DropRate) {
		e.stats.Dropped++
		return nil
	}
	frame = e.applyCorrupt(append([]byte(nil), frame...))
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(frame)
	}
	e.pending = append(e.pending, frame)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.applyDuplicate(e.take())
}

// Flush returns any buffered frames after processing completes.
func (e *Engine) Flush() [][]byte {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.applyDuplicate(e.take())...)
	}
	return out
}

func (e *Engine) take() []byte {
	idx := e.rng.Intn(len(e.pending))
	frame := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return frame
}

func (e *Engine) hit(rate float64) bool {
	return rate > 0 && e.rng.Float64() < rate
}

func (e *Engine) applyDuplicate(frame []byte) [][]byte {
	out := [][]byte{frame}
	if e.hit(e.cfg.DuplicateRate) {
		e.stats.Duplicated++
		out = append(out, frame)
	}
	e.stats.Out += len(out)
	return out
}

func (e *Engine) applyCorrupt(frame []byte) []byte {
	if len(frame) < 2 || !e.hit(e.cfg.CorruptRate) {
		return frame
	}
	e.stats.Corrupted++
	return frame[:len(frame)-1]
}
