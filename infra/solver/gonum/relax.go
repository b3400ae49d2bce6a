package gonum

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/fleetplan/core/milp"
)

var (
	errRelaxInfeasible = errors.New("relaxation infeasible")
	errRelaxUnbounded  = errors.New("relaxation unbounded")
)

// lpSolve points to the simplex routine. It can be overridden in tests to
// simulate numerical failures.
var lpSolve = lp.Simplex

// column maps one original variable to standard-form columns:
// x = offset + Σ sign*y[col].
type column struct {
	offset float64
	cols   []int
	signs  []float64
}

// relaxation is the standard-form LP  min cᵀy  s.t.  Ay = b, y >= 0  of a
// model under a set of variable bounds. Every row owns a slack column, so A
// has full row rank.
type relaxation struct {
	vars     []column
	c        []float64
	rows     [][]float64 // over structural columns only
	slack    []float64   // +1 or -1 per row
	b        []float64
	constant float64
	nStruct  int
}

// buildRelaxation substitutes fixed variables, shifts bounded ones to zero and
// turns every row into an equality with its own slack. It reports
// errRelaxInfeasible when a bound pair or an emptied row is contradictory.
func buildRelaxation(m *milp.Model, lo, hi []float64, tol float64) (*relaxation, error) {
	r := &relaxation{vars: make([]column, len(m.Vars))}
	sign := 1.0
	if m.Objective.Sense == milp.Maximize {
		sign = -1
	}
	cost := m.ObjectiveCoefficients()

	var bounds [][2]float64 // (structural column, upper width) rows
	for j := range m.Vars {
		l, h := lo[j], hi[j]
		if l > h+tol {
			return nil, errRelaxInfeasible
		}
		switch {
		case h-l <= tol:
			r.vars[j] = column{offset: l}
		case !math.IsInf(l, -1):
			k := r.addColumn(sign * cost[j])
			r.vars[j] = column{offset: l, cols: []int{k}, signs: []float64{1}}
			if !math.IsInf(h, 1) {
				bounds = append(bounds, [2]float64{float64(k), h - l})
			}
		case !math.IsInf(h, 1):
			k := r.addColumn(-sign * cost[j])
			r.vars[j] = column{offset: h, cols: []int{k}, signs: []float64{-1}}
		default:
			kp := r.addColumn(sign * cost[j])
			kn := r.addColumn(-sign * cost[j])
			r.vars[j] = column{cols: []int{kp, kn}, signs: []float64{1, -1}}
		}
		r.constant += sign * cost[j] * r.vars[j].offset
	}

	for _, con := range m.Constraints {
		row := make([]float64, r.nStruct)
		rhs := con.RHS
		for _, t := range con.Terms {
			v := r.vars[t.Var]
			rhs -= t.Coef * v.offset
			for i, k := range v.cols {
				row[k] += t.Coef * v.signs[i]
			}
		}
		if isZero(row) {
			if !milp.Satisfied(0, con.Sense, rhs, tol) {
				return nil, errRelaxInfeasible
			}
			continue
		}
		switch con.Sense {
		case milp.LE:
			r.addRow(row, 1, rhs)
		case milp.GE:
			r.addRow(row, -1, rhs)
		default:
			r.addRow(row, 1, rhs)
			r.addRow(append([]float64(nil), row...), -1, rhs)
		}
	}
	for _, bd := range bounds {
		row := make([]float64, r.nStruct)
		row[int(bd[0])] = 1
		r.addRow(row, 1, bd[1])
	}
	return r, nil
}

// standardSize estimates the dimensions of the root relaxation: one row per
// inequality, two per equality and one per doubly bounded variable, plus a
// slack column for every row.
func standardSize(m *milp.Model) (rows, cols int) {
	for _, v := range m.Vars {
		lo, hi := v.Lower, v.Upper
		switch {
		case hi <= lo:
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			cols += 2
		case math.IsInf(lo, -1) || math.IsInf(hi, 1):
			cols++
		default:
			cols++
			rows++
		}
	}
	for _, c := range m.Constraints {
		if c.Sense == milp.EQ {
			rows += 2
		} else {
			rows++
		}
	}
	return rows, cols + rows
}

func (r *relaxation) addColumn(cost float64) int {
	r.c = append(r.c, cost)
	r.nStruct++
	return r.nStruct - 1
}

func (r *relaxation) addRow(row []float64, slack, rhs float64) {
	if rhs < 0 {
		for i := range row {
			row[i] = -row[i]
		}
		slack, rhs = -slack, -rhs
	}
	r.rows = append(r.rows, row)
	r.slack = append(r.slack, slack)
	r.b = append(r.b, rhs)
}

func isZero(row []float64) bool {
	for _, v := range row {
		if v != 0 {
			return false
		}
	}
	return true
}

// solve runs the simplex method and maps the optimum back to model space.
// The returned objective is in the model's own sense.
func (r *relaxation) solve(m *milp.Model, tol float64) ([]float64, float64, error) {
	// Columns never referenced by a row are either free to sit at zero or
	// make the relaxation unbounded.
	used := make([]bool, r.nStruct)
	for _, row := range r.rows {
		for k, v := range row {
			if v != 0 {
				used[k] = true
			}
		}
	}
	keep := make([]int, 0, r.nStruct)
	for k := 0; k < r.nStruct; k++ {
		if used[k] {
			keep = append(keep, k)
		} else if r.c[k] < 0 {
			return nil, 0, errRelaxUnbounded
		}
	}

	y := make([]float64, r.nStruct)
	obj := r.constant
	if rows := len(r.rows); rows > 0 {
		n := len(keep) + rows
		A := mat.NewDense(rows, n, nil)
		c := make([]float64, n)
		basic := make([]int, rows)
		identity := true
		for k, col := range keep {
			c[k] = r.c[col]
		}
		for i, row := range r.rows {
			for k, col := range keep {
				A.Set(i, k, row[col])
			}
			A.Set(i, len(keep)+i, r.slack[i])
			basic[i] = len(keep) + i
			identity = identity && r.slack[i] > 0
		}
		var initial []int
		if identity {
			initial = basic
		}
		f, x, err := lpSolve(c, A, r.b, tol, initial)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, 0, errRelaxInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return nil, 0, errRelaxUnbounded
		case err != nil:
			return nil, 0, err
		}
		for k, col := range keep {
			y[col] = x[k]
		}
		obj += f
	}

	values := make([]float64, len(m.Vars))
	for j, v := range r.vars {
		x := v.offset
		for i, k := range v.cols {
			x += v.signs[i] * y[k]
		}
		values[j] = x
	}
	if m.Objective.Sense == milp.Maximize {
		obj = -obj
	}
	return values, obj + m.Objective.Constant, nil
}
