// Package sweep solves the planning model for a list of end-of-horizon
// targets and reports one row per target.
package sweep

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/fleetplan/core/extract"
	"github.com/kilianp07/fleetplan/core/logger"
	"github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/core/milp"
	"github.com/kilianp07/fleetplan/core/params"
	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/core/results"
	"github.com/kilianp07/fleetplan/core/solver"
	"github.com/kilianp07/fleetplan/internal/eventbus"
)

// Solver is the part of solver.Adapter the driver needs.
type Solver interface {
	Solve(ctx context.Context, m *milp.Model) solver.Result
}

// Driver runs sweeps. Bus, Store, Sink and Log are optional.
type Driver struct {
	Options     planner.Options
	Solver      Solver
	Concurrency int
	Bus         *eventbus.TypedBus[RowEvent]
	Store       results.Store
	Sink        metrics.MetricsSink
	Log         logger.Logger

	newRunID func() string
	now      func() time.Time
}

// New returns a Driver using s with the given concurrency.
func New(s Solver, opts planner.Options, concurrency int) *Driver {
	return &Driver{Solver: s, Options: opts, Concurrency: concurrency}
}

type job struct {
	index int
	plan  *planner.Plan
}

// Sweep checks every target and builds its model, then returns a sequence
// yielding one row per target in the order given. Nothing is solved until
// the sequence is ranged over; each range is a fresh run with its own run
// id. Breaking out of the range cancels the solves still in flight.
func (d *Driver) Sweep(ctx context.Context, snap *params.Snapshot, targets []float64) (iter.Seq[Row], error) {
	if d.Solver == nil {
		return nil, fmt.Errorf("sweep: no solver")
	}
	jobs := make([]job, len(targets))
	for i, target := range targets {
		if err := planner.ValidateTarget(target); err != nil {
			return nil, fmt.Errorf("sweep target %d: %w", i, err)
		}
	}
	for i, target := range targets {
		p, err := planner.Build(snap, target, d.Options)
		if err != nil {
			return nil, fmt.Errorf("sweep target %d: %w", i, err)
		}
		jobs[i] = job{index: i, plan: p}
	}
	return func(yield func(Row) bool) {
		d.run(ctx, snap, jobs, yield)
	}, nil
}

func (d *Driver) run(ctx context.Context, snap *params.Snapshot, jobs []job, yield func(Row) bool) {
	log := logger.OrNop(d.Log)
	runID := d.runID()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan Row, len(jobs))
	for i := range slots {
		slots[i] = make(chan Row, 1)
	}
	var g errgroup.Group
	g.SetLimit(max(1, d.Concurrency))
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for _, j := range jobs {
			if ctx.Err() != nil {
				slots[j.index] <- d.cancelledRow(runID, j)
				continue
			}
			g.Go(func() error {
				slots[j.index] <- d.solve(ctx, runID, j, snap)
				return nil
			})
		}
	}()
	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	log.Infow("sweep started", map[string]any{"run_id": runID, "targets": len(jobs), "concurrency": max(1, d.Concurrency), "fingerprint": snap.Fingerprint()})
	failed := 0
	for i := range jobs {
		row := <-slots[i]
		if row.Failed {
			failed++
		}
		d.report(ctx, row, snap)
		if !yield(row) {
			log.Infof("sweep %s stopped by caller after %d of %d rows", runID, i+1, len(jobs))
			return
		}
	}
	log.Infow("sweep finished", map[string]any{"run_id": runID, "rows": len(jobs), "failed": failed})
}

func (d *Driver) solve(ctx context.Context, runID string, j job, snap *params.Snapshot) Row {
	if ctx.Err() != nil {
		return d.cancelledRow(runID, j)
	}
	res := d.Solver.Solve(ctx, j.plan.Model)
	row := Row{RunID: runID, Index: j.index, Target: j.plan.Target(), Status: res.Status, WallTime: res.WallTime, Detail: res.Reason}
	switch {
	case res.Cancelled:
		row.Failed, row.Reason = true, ReasonCancelled
	case res.Status.HasSolution():
		sum, err := extract.Extract(res, j.plan, snap)
		if err != nil {
			row.Failed, row.Reason, row.Detail = true, ReasonExtraction, err.Error()
			break
		}
		row.Summary = &sum
	default:
		row.Failed, row.Reason = true, reasonFor(res.Status)
		if res.Status == solver.TimedOut && res.HasIncumbent {
			obj := res.Objective
			row.IncumbentObjective = &obj
		}
	}
	return row
}

func (d *Driver) cancelledRow(runID string, j job) Row {
	return Row{RunID: runID, Index: j.index, Target: j.plan.Target(), Status: solver.SolverError, Failed: true, Reason: ReasonCancelled}
}

// report publishes the row and hands it to the store and the metrics sink.
// Their failures are logged and never fail the sweep.
func (d *Driver) report(ctx context.Context, row Row, snap *params.Snapshot) {
	log := logger.OrNop(d.Log)
	ts := d.clock()
	if d.Bus != nil {
		d.Bus.Publish(RowEvent{Row: row, Fingerprint: snap.Fingerprint(), Time: ts})
	}
	if d.Store != nil {
		if err := d.Store.Append(context.WithoutCancel(ctx), row.Record(snap.Fingerprint(), ts)); err != nil {
			log.Warnf("store sweep row %d: %v", row.Index, err)
		}
	}
	ev := metrics.SweepRowEvent{
		RunID:    row.RunID,
		Index:    row.Index,
		Target:   row.Target,
		Status:   row.Status.String(),
		Failed:   row.Failed,
		Reason:   string(row.Reason),
		WallTime: row.WallTime,
		Time:     ts,
	}
	if s := row.Summary; s != nil {
		ev.FinalSoC = FinalSoC(s, snap)
		ev.TotalCost = s.TotalCost
		ev.EnergyCost = s.EnergyCost
		ev.PenaltyCost = s.PenaltyCost
		ev.PenaltyShare = s.PenaltyShare
		ev.DelayHours = s.DelayHours
		ev.OffHours = s.OffHoursHours
	}
	if err := metrics.OrNop(d.Sink).RecordSweepRow(ev); err != nil {
		log.Warnf("record sweep row %d: %v", row.Index, err)
	}
	log.Debugw("sweep row", map[string]any{"run_id": row.RunID, "index": row.Index, "target": row.Target, "status": row.Status.String(), "reason": string(row.Reason)})
}

// FinalSoC is the fleet's stored energy in the last slot as a fraction of
// its total capacity.
func FinalSoC(s *extract.Summary, snap *params.Snapshot) float64 {
	capacity := make(map[string]float64)
	for _, r := range snap.Resources() {
		capacity[r.ID] = r.CapacityKWh
	}
	var stored, total float64
	for _, rs := range s.Schedule.Resources {
		if len(rs.SoC) == 0 {
			continue
		}
		stored += rs.SoC[len(rs.SoC)-1]
		total += capacity[rs.ResourceID]
	}
	if total == 0 {
		return 0
	}
	return stored / total
}

func (d *Driver) runID() string {
	if d.newRunID != nil {
		return d.newRunID()
	}
	return uuid.NewString()
}

func (d *Driver) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[Row]) []Row {
	return slices.Collect(seq)
}

// Run sweeps targets and collects every row.
func (d *Driver) Run(ctx context.Context, snap *params.Snapshot, targets []float64) ([]Row, error) {
	seq, err := d.Sweep(ctx, snap, targets)
	if err != nil {
		return nil, err
	}
	return Collect(seq), nil
}
