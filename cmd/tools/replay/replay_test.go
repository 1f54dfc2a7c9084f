package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tob/internal/feed"
	"tob/internal/itch"
)

func capture(t *testing.T, n int) []byte {
	t.Helper()
	var buf []byte
	for i := 0; i < n; i++ {
		var err error
		buf, err = feed.AppendFrame(buf, itch.Encode(nil, itch.OrderDelete{Header: itch.Header{Locate: 1}, OrderRef: uint64(i + 1)}))
		require.NoError(t, err)
	}
	return buf
}

func TestReplayBatchesAndPaces(t *testing.T) {
	src := bytes.NewReader(capture(t, 5))
	var dst bytes.Buffer
	var sleeps []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	stats, err := replay(context.Background(), src, &dst, replayConfig{MaxBytes: 1400, MaxMessages: 2, Rate: 100}, sleep)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Messages)
	require.Equal(t, 3, stats.Datagrams)
	require.Equal(t, 5*(feed.HeaderSize+19), stats.Bytes)
	require.Equal(t, []time.Duration{20 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond}, sleeps)

	r := feed.NewReader(&dst)
	count := 0
	for {
		frame, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, itch.TypeOrderDelete, frame[0])
		count++
	}
	require.Equal(t, 5, count)
}

func TestReplayLimit(t *testing.T) {
	var dst bytes.Buffer
	stats, err := replay(context.Background(), bytes.NewReader(capture(t, 10)), &dst, replayConfig{Limit: 4}, sleepCtx)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Messages)
	require.Equal(t, 1, stats.Datagrams)
}

func TestReplayShortCapture(t *testing.T) {
	data := capture(t, 2)
	var dst bytes.Buffer
	_, err := replay(context.Background(), bytes.NewReader(data[:len(data)-3]), &dst, replayConfig{}, sleepCtx)
	require.Error(t, err)
}
