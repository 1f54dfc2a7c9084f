package main

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tob/internal/feed"
	"tob/internal/itch"
	"tob/internal/obs"
	"tob/pkg/exception"
)

type submitter interface {
	Submit(ctx context.Context, frame []byte, meta itch.Metadata) error
}

// ingress serializes frames from every connection into the engine and stamps
// them with a daemon-wide sequence number.
type ingress struct {
	mu      sync.Mutex
	engine  submitter
	metrics *obs.Metrics
	seq     uint32
	now     func() int64
}

// newIngress creates the ingress. metrics may be nil.
func newIngress(engine submitter, lastSeq uint32, metrics *obs.Metrics) *ingress {
	return &ingress{
		engine:  engine,
		metrics: metrics,
		seq:     lastSeq,
		now:     func() int64 { return time.Now().UTC().UnixNano() },
	}
}

// LastSeq returns the sequence number of the most recent frame.
func (in *ingress) LastSeq() uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq
}

func (in *ingress) submit(ctx context.Context, frame []byte) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.seq++
	return in.engine.Submit(ctx, frame, itch.MetadataFor(frame, in.seq, in.now()))
}

// handle reads length-prefixed frames until EOF or ctx is done. Decode errors
// are counted by the engine and skipped. A zero-length frame keeps the stream
// in sync, so it is counted as malformed and skipped too; only a frame cut off
// by the end of the stream ends the connection.
func (in *ingress) handle(ctx context.Context, conn *net.UnixConn) {
	in.serve(ctx, conn)
}

func (in *ingress) serve(ctx context.Context, r io.Reader) int {
	reader := feed.NewReader(r)
	frames := 0
	for {
		frame, err := reader.Next()
		if errors.Is(err, exception.ErrEmptyFrame) {
			in.metrics.Inc(obs.CounterMalformed)
			continue
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logs.Errorf("ingress: read frame, err: %+v", err)
			}
			return frames
		}
		frames++
		if err := in.submit(ctx, frame); err != nil && ctx.Err() != nil {
			return frames
		}
	}
}
