package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetplan/core/metrics"
)

// PromSink records solver and sweep events in Prometheus metrics.
type PromSink struct {
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cost     *prometheus.GaugeVec
	rows     *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer, nil)
}

// NewPromSinkWithRegistry registers the metrics on reg. A nil registerer
// defaults to the global one and nil buckets to the Prometheus defaults.
func NewPromSinkWithRegistry(reg prometheus.Registerer, buckets []float64) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	s := &PromSink{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetplan_solve_total",
			Help: "Total number of solver attempts",
		}, []string{"backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetplan_solve_duration_seconds",
			Help:    "Wall time of solver attempts",
			Buckets: buckets,
		}, []string{"backend", "status"}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetplan_sweep_total_cost",
			Help: "Total cost of the last solved row per target",
		}, []string{"target"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetplan_sweep_rows_total",
			Help: "Number of sweep rows by final status",
		}, []string{"status"}),
	}
	var err error
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.rows, err = register(reg, s.rows); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the attempt and observes its duration.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Backend, ev.Status).Inc()
	s.duration.WithLabelValues(ev.Backend, ev.Status).Observe(ev.Duration.Seconds())
	return nil
}

// RecordSweepRow counts the row and, when it was solved, sets the cost gauge
// of its target.
func (s *PromSink) RecordSweepRow(ev coremetrics.SweepRowEvent) error {
	status := ev.Status
	if ev.Failed && ev.Reason != "" {
		status = ev.Reason
	}
	s.rows.WithLabelValues(status).Inc()
	if !ev.Failed {
		s.cost.WithLabelValues(strconv.FormatFloat(ev.Target, 'f', -1, 64)).Set(ev.TotalCost)
	}
	return nil
}
