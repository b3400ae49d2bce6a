package sweep

import (
	"time"

	"github.com/kilianp07/fleetplan/core/extract"
	"github.com/kilianp07/fleetplan/core/results"
	"github.com/kilianp07/fleetplan/core/solver"
)

// ReasonCode says why a row has no cost summary.
type ReasonCode string

const (
	ReasonNone        ReasonCode = ""
	ReasonInfeasible  ReasonCode = "infeasible"
	ReasonUnbounded   ReasonCode = "unbounded"
	ReasonTimedOut    ReasonCode = "timed_out"
	ReasonSolverError ReasonCode = "solver_error"
	ReasonExtraction  ReasonCode = "extraction_error"
	ReasonCancelled   ReasonCode = "cancelled"
)

// Row is the outcome of one target of a sweep. Summary is nil when Failed
// is set; IncumbentObjective is only set for timed-out solves that found a
// feasible point.
type Row struct {
	RunID              string           `json:"run_id"`
	Index              int              `json:"index"`
	Target             float64          `json:"target"`
	Status             solver.Status    `json:"status"`
	Failed             bool             `json:"failed"`
	Reason             ReasonCode       `json:"reason,omitempty"`
	Detail             string           `json:"detail,omitempty"`
	Summary            *extract.Summary `json:"summary,omitempty"`
	IncumbentObjective *float64         `json:"incumbent_objective,omitempty"`
	WallTime           time.Duration    `json:"wall_time"`
}

// RowEvent is published on the bus for every row.
type RowEvent struct {
	Row         Row
	Fingerprint string
	Time        time.Time
}

func reasonFor(st solver.Status) ReasonCode {
	switch st {
	case solver.Infeasible:
		return ReasonInfeasible
	case solver.Unbounded:
		return ReasonUnbounded
	case solver.TimedOut:
		return ReasonTimedOut
	case solver.Optimal, solver.Feasible:
		return ReasonNone
	}
	return ReasonSolverError
}

// Record converts the row to its persisted form.
func (r Row) Record(fingerprint string, ts time.Time) results.Record {
	rec := results.Record{
		RunID:       r.RunID,
		Timestamp:   ts,
		Fingerprint: fingerprint,
		Row: results.Row{
			Index:      r.Index,
			Target:     r.Target,
			Status:     r.Status.String(),
			Failed:     r.Failed,
			Reason:     string(r.Reason),
			Incumbent:  r.IncumbentObjective,
			WallTimeMS: r.WallTime.Milliseconds(),
		},
	}
	if s := r.Summary; s != nil {
		rec.Row.TotalCost = s.TotalCost
		rec.Row.EnergyCost = s.EnergyCost
		rec.Row.PenaltyCost = s.PenaltyCost
		rec.Row.PenaltyShare = s.PenaltyShare
		rec.Row.DelayHours = s.DelayHours
		rec.Row.OffHoursHours = s.OffHoursHours
		rec.Row.Optimal = s.Optimal
	}
	return rec
}
