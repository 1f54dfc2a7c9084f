package snapshot

import (
	"context"
	"os"

	"github.com/yanun0323/errors"

	"tob/internal/book"
	"tob/internal/codec"
	"tob/internal/recorder"
	"tob/internal/schema"
)

// RecoverConfig controls snapshot plus export-record recovery.
type RecoverConfig struct {
	SnapshotPath    string
	ExportDir       string
	FilePrefix      string
	DisableChecksum bool
}

// RecoverResult contains recovered state and metadata.
type RecoverResult struct {
	Books   map[schema.SymbolIndex]schema.TopOfBook
	LastSeq uint32
	Applied int
}

// Recover loads a snapshot and rolls it forward with export records newer than
// the snapshot. Each record carries the full state of its symbol, so the last
// record per symbol wins.
func Recover(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	result := RecoverResult{Books: make(map[schema.SymbolIndex]schema.TopOfBook)}

	if cfg.SnapshotPath != "" {
		snap, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		for _, entry := range snap.Books {
			result.Books[entry.Symbol] = entry.State()
		}
		result.LastSeq = snap.LastSeq
	}
	if cfg.ExportDir == "" {
		return result, nil
	}
	if _, err := os.Stat(cfg.ExportDir); os.IsNotExist(err) {
		return result, nil
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:             cfg.ExportDir,
		FilePrefix:      cfg.FilePrefix,
		DisableChecksum: cfg.DisableChecksum,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	floor := result.LastSeq
	err = pb.Run(ctx, func(rec codec.Record) error {
		if floor > 0 && rec.Seq <= floor {
			return nil
		}
		if rec.Side > codec.SideNone {
			return errors.Errorf("record %d: unknown side %d", rec.Seq, rec.Side)
		}
		result.Books[schema.SymbolIndex(rec.Symbol)] = rec.State()
		result.Applied++
		if rec.Seq > result.LastSeq {
			result.LastSeq = rec.Seq
		}
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}
	return result, nil
}

// Apply restores recovered books into the arena. Call it before builders start.
func (r RecoverResult) Apply(arena *book.Arena) error {
	for idx, tob := range r.Books {
		if err := arena.Restore(idx, tob); err != nil {
			return errors.Wrapf(err, "restore symbol %d", idx)
		}
	}
	return nil
}
