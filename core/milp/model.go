// Package milp holds a solver-neutral representation of a mixed-integer
// linear program: variables with bounds, linear rows and a linear objective.
// Builders produce a Model and any backend implementing the solver contract
// consumes it.
package milp

import (
	"fmt"
	"math"
)

// VarKind is the domain of a decision variable.
type VarKind uint8

const (
	Continuous VarKind = iota
	Binary
	Integer
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	default:
		return "unknown"
	}
}

// IsInteger reports whether values of the kind must be integral.
func (k VarKind) IsInteger() bool { return k == Binary || k == Integer }

// Sense is the relation of a row to its right-hand side.
type Sense uint8

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "?"
	}
}

// ObjectiveSense selects minimisation or maximisation.
type ObjectiveSense uint8

const (
	Minimize ObjectiveSense = iota
	Maximize
)

// Var is a decision variable. Upper may be +Inf.
type Var struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Term is a coefficient applied to a variable index.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is a linear row: Σ terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Objective is a linear expression plus a constant.
type Objective struct {
	Terms    []Term
	Constant float64
	Sense    ObjectiveSense
}

// Model is a complete MILP. Variables and rows keep insertion order.
type Model struct {
	Name        string
	Vars        []Var
	Constraints []Constraint
	Objective   Objective

	names map[string]int
}

// New returns an empty minimisation model.
func New(name string) *Model {
	return &Model{Name: name, names: make(map[string]int)}
}

// AddVar appends a variable and returns its index. Binary variables are
// clamped to [0,1]. Names must be unique.
func (m *Model) AddVar(name string, kind VarKind, lower, upper float64) int {
	if kind == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	if _, dup := m.names[name]; dup {
		panic(fmt.Sprintf("milp: duplicate variable %q", name))
	}
	idx := len(m.Vars)
	m.Vars = append(m.Vars, Var{Name: name, Kind: kind, Lower: lower, Upper: upper})
	if m.names == nil {
		m.names = make(map[string]int)
	}
	m.names[name] = idx
	return idx
}

// AddConstraint appends a row and returns its index. Terms on the same
// variable are merged and zero coefficients dropped.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) int {
	m.Constraints = append(m.Constraints, Constraint{Name: name, Terms: Compact(terms), Sense: sense, RHS: rhs})
	return len(m.Constraints) - 1
}

// AddObjectiveTerm adds coef*x[v] to the objective.
func (m *Model) AddObjectiveTerm(v int, coef float64) {
	if coef == 0 {
		return
	}
	m.Objective.Terms = append(m.Objective.Terms, Term{Var: v, Coef: coef})
}

// VarIndex returns the index of the named variable.
func (m *Model) VarIndex(name string) (int, bool) {
	idx, ok := m.names[name]
	return idx, ok
}

// NumVars returns the number of columns.
func (m *Model) NumVars() int { return len(m.Vars) }

// ObjectiveCoefficients returns the dense cost vector.
func (m *Model) ObjectiveCoefficients() []float64 {
	c := make([]float64, len(m.Vars))
	for _, t := range m.Objective.Terms {
		c[t.Var] += t.Coef
	}
	return c
}

// Eval returns Σ coef*values[var].
func Eval(terms []Term, values []float64) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// ObjectiveValue evaluates the objective for an assignment.
func (m *Model) ObjectiveValue(values []float64) float64 {
	return Eval(m.Objective.Terms, values) + m.Objective.Constant
}

// Compact merges duplicate variables and removes zero coefficients, keeping
// first-appearance order.
func Compact(terms []Term) []Term {
	pos := make(map[int]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	n := 0
	for _, t := range out {
		if t.Coef != 0 {
			out[n] = t
			n++
		}
	}
	return out[:n]
}

// Stats summarises the size of a model.
type Stats struct {
	Vars        int
	Binaries    int
	Integers    int
	Constraints int
	Nonzeros    int
}

// Stats returns size counters.
func (m *Model) Stats() Stats {
	s := Stats{Vars: len(m.Vars), Constraints: len(m.Constraints)}
	for _, v := range m.Vars {
		switch v.Kind {
		case Binary:
			s.Binaries++
		case Integer:
			s.Integers++
		}
	}
	for _, c := range m.Constraints {
		s.Nonzeros += len(c.Terms)
	}
	return s
}
