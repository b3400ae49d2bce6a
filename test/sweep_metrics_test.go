package test

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/core/solver"
	"github.com/kilianp07/fleetplan/core/sweep"
	"github.com/kilianp07/fleetplan/infra/dataset"
	"github.com/kilianp07/fleetplan/infra/logger"
	"github.com/kilianp07/fleetplan/infra/metrics"
	"github.com/kilianp07/fleetplan/infra/solver/gonum"
	"github.com/kilianp07/fleetplan/test/util"
)

func TestSweepMetricsHTTPExposure(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg, nil)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = metrics.ServePrometheus(ctx, ln, reg) }()

	ds, err := dataset.Load(filepath.Join("..", "infra", "dataset", "testdata", "small.yaml"))
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	snap, err := ds.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	adapter, err := solver.NewAdapter(gonum.New(gonum.Config{}), solver.Config{}, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	d := sweep.New(adapter, planner.Options{}, 2)
	d.Sink = sink
	rows, err := d.Run(ctx, snap, ds.Targets)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	url := fmt.Sprintf("http://%s/metrics", ln.Addr())
	for _, want := range []string{
		`fleetplan_sweep_rows_total{status="optimal"} 2`,
		`fleetplan_sweep_rows_total{status="infeasible"} 1`,
		`fleetplan_sweep_total_cost{target="0.7"} 7`,
		`fleetplan_solve_total{backend="gonum",status="infeasible"} 1`,
	} {
		wctx, wcancel := context.WithTimeout(ctx, util.MetricTimeout)
		err := util.WaitForMetric(wctx, url, want)
		wcancel()
		if err != nil {
			t.Errorf("%v", err)
		}
	}
}
