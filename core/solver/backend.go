package solver

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fleetplan/core/milp"
)

// ErrBackend marks failures raised by a backend itself, as opposed to a
// model that has no solution.
var ErrBackend = errors.New("solver backend failure")

// Options bounds one backend call.
type Options struct {
	TimeLimit   time.Duration
	RelativeGap float64
}

// Result is the outcome of a solve. Values is indexed like Model.Vars and is
// only set when Status.HasSolution() or when a timed out solve kept an
// incumbent.
type Result struct {
	Status       Status        `json:"status"`
	Values       []float64     `json:"-"`
	Objective    float64       `json:"objective"`
	HasIncumbent bool          `json:"has_incumbent"`
	WallTime     time.Duration `json:"wall_time"`
	Reason       string        `json:"reason,omitempty"`
	Attempts     int           `json:"attempts"`
	Backend      string        `json:"backend"`
	Cancelled    bool          `json:"cancelled,omitempty"`
}

// Backend is a MILP engine. Solve should return once ctx is done, reporting
// TimedOut together with its best incumbent if it has one. A non-nil error
// means the engine itself failed.
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *milp.Model, opts Options) (Result, error)
}
