package solver

import "fmt"

// Status is the outcome class of a solve.
type Status int

const (
	Optimal Status = iota
	Feasible
	Infeasible
	Unbounded
	TimedOut
	SolverError
)

var statusNames = [...]string{"optimal", "feasible", "infeasible", "unbounded", "timed_out", "solver_error"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// HasSolution reports whether the status carries a usable assignment.
func (s Status) HasSolution() bool { return s == Optimal || s == Feasible }

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown solver status %q", b)
}
