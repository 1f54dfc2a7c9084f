package main

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tob/internal/book"
	"tob/internal/snapshot"
)

type bookSaver interface {
	Save(ctx context.Context, snap snapshot.Snapshot) error
}

// snapshotter periodically captures the arena to a JSON file and, when a
// store is configured, to the database.
type snapshotter struct {
	arena   *book.Arena
	names   snapshot.Namer
	session string
	lastSeq func() uint32
	path    string
	store   bookSaver
}

func (s *snapshotter) enabled() bool {
	return s.path != "" || s.store != nil
}

func (s *snapshotter) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.save(ctx); err != nil {
				logs.Errorf("snapshot, err: %+v", err)
			}
		}
	}
}

func (s *snapshotter) save(ctx context.Context) error {
	snap := snapshot.Capture(s.arena, s.names, s.session, s.lastSeq())
	if s.path != "" {
		if err := snapshot.WriteSnapshot(s.path, snap); err != nil {
			return errors.Wrap(err, "write snapshot file")
		}
	}
	if s.store != nil {
		if err := s.store.Save(ctx, snap); err != nil {
			return errors.Wrap(err, "save snapshot to store")
		}
	}
	return nil
}
