package obs

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/yanun0323/logs"
)

// Reporter periodically logs runtime memory usage and pipeline counters.
type Reporter struct {
	metrics *Metrics

	buf        [1024]byte
	prev, curr runtime.MemStats
	prevAt     time.Time
	currAt     time.Time
}

// NewReporter creates a reporter for m. m may be nil.
func NewReporter(m *Metrics) *Reporter {
	return &Reporter{metrics: m}
}

// Run logs one line every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sample()
			logs.Info(string(r.Line()))
		}
	}
}

// Sample reads runtime memory stats.
func (r *Reporter) Sample() {
	r.prev, r.curr = r.curr, r.prev
	r.prevAt = r.currAt
	r.currAt = time.Now()

	runtime.ReadMemStats(&r.curr)

	if r.prevAt.IsZero() {
		r.prevAt = r.currAt
	}
}

// Line formats the latest sample.
func (r *Reporter) Line() []byte {
	line := r.buf[:0]

	dt := r.currAt.Sub(r.prevAt).Seconds()
	if dt <= 0 {
		dt = 1
	}

	line = append(line, "[HEAP] alc="...)
	b, unit := bytesCarry(r.curr.HeapAlloc)
	line = strconv.AppendUint(line, b, 10)
	line = append(line, unit...)

	line = append(line, " alc_rate="...)
	rb, runit := bytesCarryFloat(float64(r.curr.TotalAlloc-r.prev.TotalAlloc) / dt)
	line = strconv.AppendFloat(line, rb, 'f', 2, 64)
	line = append(line, runit...)
	line = append(line, "/s"...)

	line = append(line, " [GC] times="...)
	line = strconv.AppendUint(line, uint64(r.curr.NumGC-r.prev.NumGC), 10)
	line = append(line, " stw="...)
	line = strconv.AppendFloat(line, float64(r.curr.PauseTotalNs-r.prev.PauseTotalNs)/1e6, 'f', 4, 64)
	line = append(line, "ms"...)

	if r.metrics != nil {
		line = append(line, " [TOB]"...)
		for _, c := range []Counter{CounterDecoded, CounterMalformed, CounterUnresolved, CounterApplied, CounterCoalesced, CounterDelivered} {
			line = append(line, ' ')
			line = append(line, c.String()...)
			line = append(line, '=')
			line = strconv.AppendUint(line, r.metrics.Load(c), 10)
		}
		lat := r.metrics.DecodeLatency().Snapshot()
		line = append(line, " p99="...)
		line = append(line, lat.P99.String()...)
	}
	return line
}

const carryThreshold = 1 << 15

func bytesCarry(value uint64) (uint64, string) {
	if value < carryThreshold {
		return value, " B"
	}
	value >>= 10
	if value < carryThreshold {
		return value, " KB"
	}
	value >>= 10
	if value < carryThreshold {
		return value, " MB"
	}
	return value >> 10, " GB"
}

func bytesCarryFloat(value float64) (float64, string) {
	if value < float64(carryThreshold) {
		return value, " B"
	}
	value /= 1024
	if value < float64(carryThreshold) {
		return value, " KB"
	}
	value /= 1024
	if value < float64(carryThreshold) {
		return value, " MB"
	}
	return value / 1024, " GB"
}
