package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/core/results"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `dataset:
  path: "data/fleet.yaml"
solver:
  backend:
    type: "glpsol"
    conf:
      binary: "/usr/bin/glpsol"
  time_limit: "30s"
  relative_gap: 0.01
  sessions: 2
planner:
  formulation: "big-m"
  reserve_fraction: 0.05
sweep:
  targets: [0.2, 0.6, 1.0]
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "nop"
results:
  backend: "sqlite"
  path: "runs.db"
output:
  format: "csv"
logging:
  level: "debug"
  format: "console"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"dataset.path", cfg.Dataset.Path, filepath.Join(filepath.Dir(path), "data/fleet.yaml")},
		{"solver.backend", cfg.Solver.Backend.Type, "glpsol"},
		{"solver.backend.conf", cfg.Solver.Backend.Conf["binary"], "/usr/bin/glpsol"},
		{"solver.time_limit", cfg.Solver.TimeLimit, 30 * time.Second},
		{"solver.relative_gap", cfg.Solver.RelativeGap, 0.01},
		{"solver.relax_factor", cfg.Solver.RelaxFactor, 2.0},
		{"planner.formulation", cfg.Planner.Formulation, planner.BigM},
		{"planner.reserve_fraction", cfg.Planner.ReserveFraction, 0.05},
		{"sweep.targets", len(cfg.Sweep.Targets), 3},
		{"sweep.concurrency", cfg.Sweep.Concurrency, 2},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"metrics.sinks", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"results.backend", cfg.Results.Backend, results.BackendSQLite},
		{"results.path", cfg.Results.Path, "runs.db"},
		{"output.format", cfg.Output.Format, "csv"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"logging.format", cfg.Logging.Format, "console"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"dataset": {"path": "/data/fleet.yaml"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Dataset.Path != "/data/fleet.yaml" {
		t.Errorf("absolute dataset path changed: %s", cfg.Dataset.Path)
	}
	if cfg.Solver.Backend.Type != "glpsol" || cfg.Solver.TimeLimit != time.Minute {
		t.Errorf("solver defaults not applied: %+v", cfg.Solver)
	}
	if cfg.Planner.Formulation != planner.StartIndexed {
		t.Errorf("unexpected formulation %q", cfg.Planner.Formulation)
	}
	if cfg.Sweep.Concurrency != 1 {
		t.Errorf("concurrency should follow solver sessions, got %d", cfg.Sweep.Concurrency)
	}
	if cfg.Results.Backend != results.BackendNone || cfg.Output.Format != "table" {
		t.Errorf("unexpected defaults: results=%s output=%s", cfg.Results.Backend, cfg.Output.Format)
	}
	if cfg.MQTT.ClientID != "" {
		t.Errorf("mqtt defaults applied without mqtt results backend")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", "dataset:\n  path: fleet.yaml\nsolver:\n  time_limit: 10s\n")
	t.Setenv("K_SOLVER__TIME_LIMIT", "45s")
	t.Setenv("K_OUTPUT__FORMAT", "json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.TimeLimit != 45*time.Second {
		t.Errorf("env override ignored: %v", cfg.Solver.TimeLimit)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("env override ignored: %s", cfg.Output.Format)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"missing dataset":  "solver:\n  sessions: 1\n",
		"bad formulation":  "dataset:\n  path: f.yaml\nplanner:\n  formulation: clever\n",
		"bad reserve":      "dataset:\n  path: f.yaml\nplanner:\n  reserve_fraction: 1.5\n",
		"bad target":       "dataset:\n  path: f.yaml\nsweep:\n  targets: [0.5, 0]\n",
		"bad gap":          "dataset:\n  path: f.yaml\nsolver:\n  relative_gap: 2\n",
		"bad results":      "dataset:\n  path: f.yaml\nresults:\n  backend: redis\n",
		"mqtt w/o broker":  "dataset:\n  path: f.yaml\nresults:\n  backend: mqtt\n",
		"bad output":       "dataset:\n  path: f.yaml\noutput:\n  format: xml\n",
		"bad log level":    "dataset:\n  path: f.yaml\nlogging:\n  level: loud\n",
		"bad metrics sink": "dataset:\n  path: f.yaml\nmetrics:\n  sinks:\n    - conf: {}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "config.yaml", data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := Load(writeConfig(t, "config.toml", "")); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestResolveTargets(t *testing.T) {
	if got := (SweepConfig{Targets: []float64{0.5}}).ResolveTargets([]float64{0.3}); len(got) != 1 || got[0] != 0.5 {
		t.Errorf("configured targets should win: %v", got)
	}
	if got := (SweepConfig{}).ResolveTargets([]float64{0.3}); len(got) != 1 || got[0] != 0.3 {
		t.Errorf("dataset targets expected: %v", got)
	}
	got := (SweepConfig{}).ResolveTargets(nil)
	got[0] = 42
	if DefaultTargets[0] != 0.2 {
		t.Errorf("defaults must not be aliased")
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "examples", "config.yaml"))
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if want := filepath.Join("..", "examples", "fleet-week.yaml"); cfg.Dataset.Path != want {
		t.Errorf("dataset path %q, want %q", cfg.Dataset.Path, want)
	}
	if cfg.Solver.Backend.Type != "glpsol" || cfg.Sweep.Concurrency != 2 {
		t.Errorf("unexpected solver settings: %+v %+v", cfg.Solver, cfg.Sweep)
	}
}
