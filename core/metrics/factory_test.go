package metrics_test

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetplan/core/factory"
	metrics "github.com/kilianp07/fleetplan/core/metrics"
	_ "github.com/kilianp07/fleetplan/infra/metrics"
)

func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	cfgs := []factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}}
	s, err = metrics.NewMetricsSink(cfgs)
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}

type countingSink struct {
	solves, rows int
	err          error
}

func (c *countingSink) RecordSolve(metrics.SolveEvent) error {
	c.solves++
	return c.err
}

func (c *countingSink) RecordSweepRow(metrics.SweepRowEvent) error {
	c.rows++
	return c.err
}

func TestMultiSinkForwardsAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{}, &countingSink{err: boom}
	m := metrics.NewMultiSink(a, b)
	if err := m.RecordSolve(metrics.SolveEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if err := m.RecordSweepRow(metrics.SweepRowEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if a.solves != 1 || a.rows != 1 || b.solves != 1 || b.rows != 1 {
		t.Fatalf("events not forwarded to every sink: %+v %+v", a, b)
	}
}

func TestMetricsConfigDecodeYAML(t *testing.T) {
	data := `sinks:
  - type: prometheus
  - type: influx
    conf:
      url: http://localhost:8086
prometheus_addr: ":9090"
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].Conf["url"] != "http://localhost:8086" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Sinks = append(cfg.Sinks, factory.ModuleConfig{})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for sink without type")
	}
}

type closingSink struct {
	countingSink
	closed bool
}

func (c *closingSink) Close() error {
	c.closed = true
	return nil
}

func TestCloseReachesNestedSinks(t *testing.T) {
	a := &closingSink{}
	metrics.Close(metrics.NewMultiSink(&countingSink{}, a))
	if !a.closed {
		t.Fatal("nested sink not closed")
	}
	metrics.Close(metrics.NopSink{})
}

func TestSinkNames(t *testing.T) {
	names := metrics.SinkNames()
	want := map[string]bool{"nop": false, "prometheus": false, "influx": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Errorf("sink %q not registered", n)
		}
	}
}

func TestNewMetricsSinkNamesFailingEntry(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "statsd"}})
	if !errors.Is(err, factory.ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if got := err.Error(); len(got) < 16 || got[:16] != "metrics.sinks[1]" {
		t.Fatalf("error should name the entry: %q", got)
	}
}
