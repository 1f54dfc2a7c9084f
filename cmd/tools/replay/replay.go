package main

import (
	"context"
	"io"
	"time"

	"github.com/yanun0323/errors"

	"tob/internal/feed"
)

type replayConfig struct {
	MaxBytes    int
	MaxMessages int
	// Rate is messages per second; zero sends as fast as possible.
	Rate  float64
	Limit int
}

type replayStats struct {
	Messages  int
	Datagrams int
	Bytes     int
}

type sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
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

// replay reads frames from src, packs them into datagram sized batches and
// writes each batch to dst, paced to cfg.Rate.
func replay(ctx context.Context, src io.Reader, dst io.Writer, cfg replayConfig, sleep sleeper) (replayStats, error) {
	var stats replayStats
	reader := feed.NewReader(src)
	batcher := feed.NewBatcher(cfg.MaxBytes, cfg.MaxMessages)
	pending := 0

	send := func(datagram []byte, count int) error {
		if len(datagram) == 0 {
			return nil
		}
		if _, err := dst.Write(datagram); err != nil {
			return errors.Wrap(err, "write datagram")
		}
		stats.Datagrams++
		stats.Bytes += len(datagram)
		if cfg.Rate > 0 {
			return sleep(ctx, time.Duration(float64(count)*float64(time.Second)/cfg.Rate))
		}
		return nil
	}

	for cfg.Limit <= 0 || stats.Messages < cfg.Limit {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.Wrapf(err, "read frame %d", stats.Messages+1)
		}
		full, err := batcher.Add(frame)
		if err != nil {
			return stats, err
		}
		if full != nil {
			if err := send(full, pending); err != nil {
				return stats, err
			}
			pending = 0
		}
		pending++
		stats.Messages++
	}
	if err := send(batcher.Flush(), pending); err != nil {
		return stats, err
	}
	return stats, nil
}
