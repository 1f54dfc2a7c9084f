package obs

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// LatencyStats aggregates duration samples in nanoseconds. Percentiles are
// read from a prometheus histogram, interpolated inside the matching bucket.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64

	dist prometheus.Histogram
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	P999  time.Duration
	P9999 time.Duration
}

// NewLatencyStats creates stats backed by a histogram named name.
func NewLatencyStats(name, help string) *LatencyStats {
	l := &LatencyStats{}
	l.init(name, help)
	return l
}

func (l *LatencyStats) init(name, help string) {
	l.dist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBucketsRange(50e-9, 1, 96),
	})
}

// Histogram returns the backing histogram, nil for zero-value stats.
func (l *LatencyStats) Histogram() prometheus.Histogram {
	if l == nil {
		return nil
	}
	return l.dist
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if l == nil || d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)
	if l.dist != nil {
		l.dist.Observe(d.Seconds())
	}

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	if l == nil {
		return LatencySnapshot{}
	}
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	snap := LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
	if l.dist == nil {
		return snap
	}

	var m dto.Metric
	if err := l.dist.Write(&m); err != nil {
		return snap
	}
	pct := func(q float64) time.Duration {
		d := quantile(m.GetHistogram(), q)
		return max(snap.Min, min(d, snap.Max))
	}
	snap.P50 = pct(0.5)
	snap.P90 = pct(0.9)
	snap.P99 = pct(0.99)
	snap.P999 = pct(0.999)
	snap.P9999 = pct(0.9999)
	return snap
}

// quantile interpolates linearly inside the first bucket whose cumulative
// count reaches q of the samples.
func quantile(h *dto.Histogram, q float64) time.Duration {
	total := float64(h.GetSampleCount())
	if total == 0 {
		return 0
	}
	rank := q * total
	var prevCount, prevBound float64
	for _, b := range h.GetBucket() {
		count := float64(b.GetCumulativeCount())
		upper := b.GetUpperBound()
		if count >= rank {
			if count == prevCount {
				return seconds(upper)
			}
			return seconds(prevBound + (upper-prevBound)*(rank-prevCount)/(count-prevCount))
		}
		prevCount, prevBound = count, upper
	}
	return seconds(prevBound)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
