package obs

import (
	"sync/atomic"
	"time"
)

// Counter identifies one pipeline counter.
type Counter int

const (
	CounterDecoded Counter = iota
	CounterMalformed
	CounterUnknownType
	CounterLengthMismatch
	CounterUnresolved
	CounterOutOfRange
	CounterApplied
	CounterDropped
	CounterUnknownOrder
	CounterSystem
	CounterSeqGap
	CounterQueueFull
	CounterCoalesced
	CounterDelivered
	CounterPublished
	CounterPublishFailed
	CounterExported
	CounterExportDropped
	counterCount
)

var counterNames = [counterCount]string{
	CounterDecoded:        "decoded",
	CounterMalformed:      "malformed",
	CounterUnknownType:    "unknown_type",
	CounterLengthMismatch: "length_mismatch",
	CounterUnresolved:     "unresolved",
	CounterOutOfRange:     "out_of_range",
	CounterApplied:        "applied",
	CounterDropped:        "dropped",
	CounterUnknownOrder:   "unknown_order",
	CounterSystem:         "system",
	CounterSeqGap:         "seq_gap",
	CounterQueueFull:      "queue_full",
	CounterCoalesced:      "coalesced",
	CounterDelivered:      "delivered",
	CounterPublished:      "published",
	CounterPublishFailed:  "publish_failed",
	CounterExported:       "exported",
	CounterExportDropped:  "export_dropped",
}

func (c Counter) String() string {
	if c < 0 || c >= counterCount {
		return "unknown"
	}
	return counterNames[c]
}

// Counters lists every counter in declaration order.
func Counters() []Counter {
	list := make([]Counter, counterCount)
	for i := range list {
		list[i] = Counter(i)
	}
	return list
}

// Metrics collects lightweight counters and latency stats.
// All methods are safe on a nil receiver.
type Metrics struct {
	counters      [counterCount]uint64
	decodeLatency LatencyStats
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Counters      map[string]uint64
	DecodeLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.decodeLatency.init("decode_latency_seconds", "Ingress to decode latency.")
	return m
}

// Inc increments c by one.
func (m *Metrics) Inc(c Counter) {
	m.Add(c, 1)
}

// Add increments c by n.
func (m *Metrics) Add(c Counter, n uint64) {
	if m == nil || c < 0 || c >= counterCount {
		return
	}
	atomic.AddUint64(&m.counters[c], n)
}

// Load returns the current value of c.
func (m *Metrics) Load(c Counter) uint64 {
	if m == nil || c < 0 || c >= counterCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[c])
}

// ObserveDecode records the ingress to decode latency of one message.
func (m *Metrics) ObserveDecode(d time.Duration) {
	if m == nil {
		return
	}
	m.decodeLatency.Observe(d)
}

// DecodeLatency returns the decode latency stats.
func (m *Metrics) DecodeLatency() *LatencyStats {
	if m == nil {
		return nil
	}
	return &m.decodeLatency
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counters := make(map[string]uint64, counterCount)
	for i := range m.counters {
		counters[Counter(i).String()] = atomic.LoadUint64(&m.counters[i])
	}
	return Snapshot{
		Counters:      counters,
		DecodeLatency: m.decodeLatency.Snapshot(),
	}
}
