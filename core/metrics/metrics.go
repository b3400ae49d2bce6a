package metrics

import (
	"errors"
	"time"
)

// SolveEvent describes one solver attempt.
type SolveEvent struct {
	Model        string
	Backend      string
	Status       string
	Attempt      int
	Duration     time.Duration
	Objective    float64
	HasIncumbent bool
	Vars         int
	Constraints  int
	Time         time.Time
}

// SweepRowEvent describes one completed row of a target sweep.
type SweepRowEvent struct {
	RunID        string
	Index        int
	Target       float64
	Status       string
	Failed       bool
	Reason       string
	FinalSoC     float64
	TotalCost    float64
	EnergyCost   float64
	PenaltyCost  float64
	PenaltyShare float64
	DelayHours   float64
	OffHours     float64
	WallTime     time.Duration
	Time         time.Time
}

// MetricsSink records solver and sweep events for observability purposes.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
	RecordSweepRow(ev SweepRowEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error       { return nil }
func (NopSink) RecordSweepRow(SweepRowEvent) error { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSolve(ev))
	}
	return errors.Join(errs...)
}

// RecordSweepRow forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordSweepRow(ev SweepRowEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSweepRow(ev))
	}
	return errors.Join(errs...)
}

// OrNop returns s, or a NopSink when s is nil.
func OrNop(s MetricsSink) MetricsSink {
	if s == nil {
		return NopSink{}
	}
	return s
}

// Close releases sinks that hold connections, such as buffered writers.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		Close(s)
	}
}

// Close closes s when it has a Close method.
func Close(s MetricsSink) {
	switch c := s.(type) {
	case interface{ Close() }:
		c.Close()
	case interface{ Close() error }:
		_ = c.Close()
	}
}
