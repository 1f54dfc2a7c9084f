package main

import (
	"tob/internal/codec"
	"tob/internal/obs"
	"tob/internal/risk"
	"tob/internal/schema"
)

type recordAppender interface {
	TryAppend(rec codec.Record) error
}

type updatePublisher interface {
	Publish(u schema.BookUpdate) error
}

// sink consumes mailbox updates: the gate decides, the decision is exported
// as a record and the update goes out on the bus. It runs on the mailbox
// consumer goroutine only.
type sink struct {
	gate      *risk.Gate
	exporter  recordAppender
	publisher updatePublisher
	metrics   *obs.Metrics
	now       func() int64
}

func (s *sink) handle(u schema.BookUpdate) {
	var now int64
	if s.now != nil {
		now = s.now()
	}
	decision := s.gate.Evaluate(u, now)

	if s.exporter != nil {
		rec := codec.NewRecord(u, decision.RefPrice, decision.Accepted, decision.Reason)
		if err := s.exporter.TryAppend(rec); err != nil {
			s.metrics.Inc(obs.CounterExportDropped)
		} else {
			s.metrics.Inc(obs.CounterExported)
		}
	}

	if s.publisher != nil {
		// counted by the publisher
		_ = s.publisher.Publish(u)
	}
}
