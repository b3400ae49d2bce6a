package gonum

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/fleetplan/core/factory"
	"github.com/kilianp07/fleetplan/core/logger"
	"github.com/kilianp07/fleetplan/core/milp"
	"github.com/kilianp07/fleetplan/core/solver"
	infralogger "github.com/kilianp07/fleetplan/infra/logger"
)

// Name is the registry key of this backend.
const Name = "gonum"

// DefaultMaxCells admits models of roughly a day for a single resource.
const DefaultMaxCells = 60000

func init() {
	_ = solver.RegisterBackend(Name, func(conf map[string]any) (solver.Backend, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c), nil
	})
}

// Config tunes the search.
type Config struct {
	MaxNodes int `json:"max_nodes"`
	// MaxCells bounds the dense standard-form tableau (rows times columns)
	// of the root relaxation. Larger models are refused up front.
	MaxCells             int     `json:"max_cells"`
	SimplexTolerance     float64 `json:"simplex_tolerance"`
	IntegralityTolerance float64 `json:"integrality_tolerance"`
}

func (c *Config) setDefaults() {
	if c.MaxNodes == 0 {
		c.MaxNodes = 20000
	}
	if c.MaxCells == 0 {
		c.MaxCells = DefaultMaxCells
	}
	if c.SimplexTolerance == 0 {
		c.SimplexTolerance = 1e-8
	}
	if c.IntegralityTolerance == 0 {
		c.IntegralityTolerance = 1e-6
	}
}

// Backend is a depth-first branch and bound over gonum's simplex method. It
// is exact but dense, and meant for small models. The simplex itself cannot
// be interrupted, so the context is only honoured between nodes.
type Backend struct {
	cfg Config
	log logger.Logger
}

// New returns a Backend with defaults applied to cfg.
func New(cfg Config) *Backend {
	cfg.setDefaults()
	return &Backend{cfg: cfg, log: infralogger.New("solver-gonum")}
}

// Name implements solver.Backend.
func (b *Backend) Name() string { return Name }

type node struct {
	lo, hi []float64
	bound  float64
	depth  int
}

type search struct {
	m         *milp.Model
	cfg       Config
	gap       float64
	best      []float64
	bestObj   float64
	nodes     int
	failures  int
	lastError error
}

// Solve implements solver.Backend.
func (b *Backend) Solve(ctx context.Context, m *milp.Model, opts solver.Options) (solver.Result, error) {
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	start := time.Now()
	if rows, cols := standardSize(m); rows*cols > b.cfg.MaxCells {
		return solver.Result{Backend: Name}, fmt.Errorf("%w: model %s needs a %dx%d dense tableau, above max_cells %d",
			solver.ErrBackend, m.Name, rows, cols, b.cfg.MaxCells)
	}
	s := &search{m: m, cfg: b.cfg, gap: opts.RelativeGap, bestObj: math.Inf(1)}

	root, ok := s.rootBounds()
	if !ok {
		return solver.Result{Status: solver.Infeasible, Reason: "empty integer bound range", Backend: Name}, nil
	}
	stack := []node{root}
	var stop string
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			stop = "deadline"
			break
		}
		if s.nodes >= s.cfg.MaxNodes {
			stop = "node limit"
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= s.cutoff() {
			continue
		}
		s.nodes++

		values, obj, err := s.relax(nd)
		switch {
		case errors.Is(err, errRelaxInfeasible):
			continue
		case errors.Is(err, errRelaxUnbounded):
			if nd.depth == 0 {
				return solver.Result{Status: solver.Unbounded, Reason: "relaxation unbounded", Backend: Name, WallTime: time.Since(start)}, nil
			}
			continue
		case err != nil:
			s.failures++
			s.lastError = err
			continue
		}
		if obj >= s.cutoff() {
			continue
		}
		j := s.branchVar(values)
		if j < 0 {
			s.improve(values)
			continue
		}
		down, up := nd.child(j, math.Floor(values[j]), obj, true), nd.child(j, math.Ceil(values[j]), obj, false)
		// the branch nearer to the relaxed value is explored first
		if values[j]-math.Floor(values[j]) > 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	b.log.Debugw("branch and bound finished", map[string]any{
		"model":    m.Name,
		"nodes":    s.nodes,
		"open":     len(stack),
		"failures": s.failures,
		"stop":     stop,
		"best":     s.bestObj,
	})
	res := solver.Result{Backend: Name, WallTime: time.Since(start)}
	if s.best != nil {
		res.Values = s.best
		res.HasIncumbent = true
		res.Objective = s.userObjective()
	}
	switch {
	case stop == "deadline":
		res.Status = solver.TimedOut
		res.Reason = fmt.Sprintf("time limit reached after %d nodes", s.nodes)
	case stop != "":
		if s.best == nil {
			return res, fmt.Errorf("%w: node limit %d reached without a feasible point", solver.ErrBackend, s.cfg.MaxNodes)
		}
		res.Status = solver.Feasible
		res.Reason = fmt.Sprintf("node limit %d reached", s.cfg.MaxNodes)
	case s.failures > 0:
		if s.best == nil {
			return res, fmt.Errorf("%w: %d relaxations failed: %v", solver.ErrBackend, s.failures, s.lastError)
		}
		res.Status = solver.Feasible
		res.Reason = fmt.Sprintf("%d relaxations failed, optimality not proven", s.failures)
	case s.best != nil:
		res.Status = solver.Optimal
	default:
		res.Status = solver.Infeasible
	}
	return res, nil
}

// rootBounds collects the variable bounds, tightened to integers where the
// variable kind requires it.
func (s *search) rootBounds() (node, bool) {
	n := node{lo: make([]float64, len(s.m.Vars)), hi: make([]float64, len(s.m.Vars)), bound: math.Inf(-1)}
	tol := s.cfg.IntegralityTolerance
	for j, v := range s.m.Vars {
		lo, hi := v.Lower, v.Upper
		if v.Kind.IsInteger() {
			lo, hi = math.Ceil(lo-tol), math.Floor(hi+tol)
		}
		if lo > hi {
			return n, false
		}
		n.lo[j], n.hi[j] = lo, hi
	}
	return n, true
}

// relax solves the node's relaxation. The objective is in minimisation sense.
func (s *search) relax(nd node) ([]float64, float64, error) {
	r, err := buildRelaxation(s.m, nd.lo, nd.hi, s.cfg.IntegralityTolerance)
	if err != nil {
		return nil, 0, err
	}
	values, obj, err := r.solve(s.m, s.cfg.SimplexTolerance)
	if err != nil {
		return nil, 0, err
	}
	if s.m.Objective.Sense == milp.Maximize {
		obj = -obj
	}
	return values, obj, nil
}

// branchVar returns the integer variable whose value is most fractional, or
// -1 when the point is integral.
func (s *search) branchVar(values []float64) int {
	best, bestDist := -1, s.cfg.IntegralityTolerance
	for j, v := range s.m.Vars {
		if !v.Kind.IsInteger() {
			continue
		}
		f := values[j] - math.Floor(values[j])
		if d := math.Min(f, 1-f); d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// improve records an integral point if it beats the incumbent.
func (s *search) improve(values []float64) {
	for j, v := range s.m.Vars {
		if v.Kind.IsInteger() {
			values[j] = math.Round(values[j])
		}
		values[j] = math.Min(math.Max(values[j], v.Lower), v.Upper)
	}
	obj := s.m.ObjectiveValue(values)
	if s.m.Objective.Sense == milp.Maximize {
		obj = -obj
	}
	if obj < s.bestObj {
		s.best, s.bestObj = values, obj
	}
}

// cutoff is the value a node must beat to be worth exploring.
func (s *search) cutoff() float64 {
	if s.best == nil {
		return math.Inf(1)
	}
	return s.bestObj - math.Max(1e-9, s.gap*math.Abs(s.bestObj))
}

func (s *search) userObjective() float64 {
	if s.m.Objective.Sense == milp.Maximize {
		return -s.bestObj
	}
	return s.bestObj
}

func (n node) child(j int, at, bound float64, down bool) node {
	c := node{lo: append([]float64(nil), n.lo...), hi: append([]float64(nil), n.hi...), bound: bound, depth: n.depth + 1}
	if down {
		c.hi[j] = at
	} else {
		c.lo[j] = at
	}
	return c
}
