package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"tob/internal/codec"
)

// PlaybackConfig controls segment playback behavior.
type PlaybackConfig struct {
	Dir             string
	FilePrefix      string
	Speed           float64
	UseDecodeTime   bool
	DisableChecksum bool
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays export records in file order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run replays records and calls the handler for each one. With a positive
// Speed the gaps between ingress timestamps are reproduced, scaled by Speed.
func (p *Playback) Run(ctx context.Context, handler func(codec.Record) error) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	files, err := p.Files()
	if err != nil {
		return err
	}

	var prevTS uint64
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prevTS); err != nil {
			return err
		}
	}
	return nil
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.Errorf("invalid playback config: Dir is empty")
	}
	if c.Speed < 0 {
		return errors.Errorf("invalid playback config: Speed must be >= 0")
	}
	return nil
}

// Files lists the segment files in playback order.
func (p *Playback) Files() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "read playback dir")
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(codec.Record) error, prevTS *uint64) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open segment")
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{DisableChecksum: p.cfg.DisableChecksum})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}

		if err := p.pace(ctx, rec, prevTS); err != nil {
			return err
		}
		if err := handler(rec); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, rec codec.Record, prevTS *uint64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := rec.TsIngress
	if p.cfg.UseDecodeTime {
		current = rec.TsDecode
	}
	if current == 0 {
		return nil
	}
	if *prevTS > 0 && current > *prevTS {
		sleep := time.Duration(float64(current-*prevTS) / p.cfg.Speed)
		if err := p.clock.Sleep(ctx, sleep); err != nil {
			return err
		}
	}
	*prevTS = current
	return nil
}
