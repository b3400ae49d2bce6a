package milp

import (
	"fmt"
	"math"
)

// Violation describes a bound, integrality or row that an assignment breaks.
type Violation struct {
	Name     string
	Activity float64
	Sense    Sense
	RHS      float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %g %s %g", v.Name, v.Activity, v.Sense, v.RHS)
}

// Check returns every violation of the model by values within tol.
func (m *Model) Check(values []float64, tol float64) []Violation {
	if len(values) != len(m.Vars) {
		return []Violation{{Name: fmt.Sprintf("assignment length %d, want %d", len(values), len(m.Vars))}}
	}
	var out []Violation
	for i, v := range m.Vars {
		x := values[i]
		if x < v.Lower-tol {
			out = append(out, Violation{Name: v.Name + ".lb", Activity: x, Sense: GE, RHS: v.Lower})
		}
		if x > v.Upper+tol {
			out = append(out, Violation{Name: v.Name + ".ub", Activity: x, Sense: LE, RHS: v.Upper})
		}
		if v.Kind.IsInteger() && math.Abs(x-math.Round(x)) > tol {
			out = append(out, Violation{Name: v.Name + ".int", Activity: x, Sense: EQ, RHS: math.Round(x)})
		}
	}
	for _, c := range m.Constraints {
		act := Eval(c.Terms, values)
		if !Satisfied(act, c.Sense, c.RHS, tol) {
			out = append(out, Violation{Name: c.Name, Activity: act, Sense: c.Sense, RHS: c.RHS})
		}
	}
	return out
}

// Satisfied reports whether activity meets the row relation within tol.
func Satisfied(activity float64, sense Sense, rhs, tol float64) bool {
	switch sense {
	case LE:
		return activity <= rhs+tol
	case GE:
		return activity >= rhs-tol
	default:
		return math.Abs(activity-rhs) <= tol
	}
}
