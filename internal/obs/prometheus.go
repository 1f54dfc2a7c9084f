package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tob"

// Register exposes m through reg. Values are read on scrape.
func Register(reg prometheus.Registerer, m *Metrics) error {
	for _, c := range Counters() {
		c := c
		counter := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      c.String() + "_total",
			Help:      "Pipeline counter " + c.String() + ".",
		}, func() float64 {
			return float64(m.Load(c))
		})
		if err := reg.Register(counter); err != nil {
			return err
		}
	}

	latency := m.DecodeLatency()
	if hist := latency.Histogram(); hist != nil {
		if err := reg.Register(hist); err != nil {
			return err
		}
	}

	maxGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "decode_latency_max_seconds",
		Help:      "Maximum ingress to decode latency.",
	}, func() float64 {
		return latency.Snapshot().Max.Seconds()
	})
	return reg.Register(maxGauge)
}
