package glpsol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fleetplan/core/factory"
	"github.com/kilianp07/fleetplan/core/logger"
	"github.com/kilianp07/fleetplan/core/milp"
	"github.com/kilianp07/fleetplan/core/solver"
	infralogger "github.com/kilianp07/fleetplan/infra/logger"
	"github.com/kilianp07/fleetplan/pkg/export"
)

// Name is the registry key of this backend.
const Name = "glpsol"

func init() {
	_ = solver.RegisterBackend(Name, func(conf map[string]any) (solver.Backend, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c)
	})
}

// Config locates the glpsol executable.
type Config struct {
	Binary string `json:"binary"`
	// WorkDir holds the temporary model and solution files; empty means the
	// system temp directory.
	WorkDir   string   `json:"work_dir"`
	KeepFiles bool     `json:"keep_files"`
	ExtraArgs []string `json:"extra_args"`
}

// Backend runs GLPK's glpsol driver as a child process. The process is
// killed when the context is done.
type Backend struct {
	cfg Config
	log logger.Logger
}

// New checks that the binary can be found and returns a Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Binary == "" {
		cfg.Binary = "glpsol"
	}
	path, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("glpsol: %w", err)
	}
	cfg.Binary = path
	return &Backend{cfg: cfg, log: infralogger.New("solver-glpsol")}, nil
}

// Name implements solver.Backend.
func (b *Backend) Name() string { return Name }

// Solve implements solver.Backend.
func (b *Backend) Solve(ctx context.Context, m *milp.Model, opts solver.Options) (solver.Result, error) {
	start := time.Now()
	dir, err := os.MkdirTemp(b.cfg.WorkDir, "glpsol-*")
	if err != nil {
		return solver.Result{}, fmt.Errorf("%w: %v", solver.ErrBackend, err)
	}
	if b.cfg.KeepFiles {
		b.log.Infof("glpsol files kept in %s", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	mpsPath := filepath.Join(dir, "model.mps")
	solPath := filepath.Join(dir, "model.sol")
	if err := writeModel(mpsPath, minimization(m)); err != nil {
		return solver.Result{}, fmt.Errorf("%w: write model: %v", solver.ErrBackend, err)
	}

	args := []string{"--freemps", mpsPath, "-w", solPath}
	if opts.TimeLimit > 0 {
		secs := int(math.Max(1, math.Ceil(opts.TimeLimit.Seconds())))
		args = append(args, "--tmlim", strconv.Itoa(secs))
	}
	if opts.RelativeGap > 0 {
		args = append(args, "--mipgap", strconv.FormatFloat(opts.RelativeGap, 'g', -1, 64))
	}
	args = append(args, b.cfg.ExtraArgs...)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, b.cfg.Binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 2 * time.Second
	runErr := cmd.Run()
	b.log.Debugw("glpsol finished", map[string]any{"model": m.Name, "args": strings.Join(args, " "), "elapsed": time.Since(start).String()})

	res := solver.Result{Backend: Name}
	if ctx.Err() != nil {
		res.Status = solver.TimedOut
		res.Reason = "glpsol stopped: " + ctx.Err().Error()
		res.WallTime = time.Since(start)
		return res, nil
	}

	f, err := os.Open(solPath)
	if err != nil {
		return res, fmt.Errorf("%w: glpsol wrote no solution (%v): %s", solver.ErrBackend, errors.Join(runErr, err), tail(out.String()))
	}
	defer f.Close()
	sol, err := parseSolution(f)
	if err != nil {
		return res, fmt.Errorf("%w: parse solution: %v", solver.ErrBackend, err)
	}
	if len(sol.cols) != m.NumVars() {
		return res, fmt.Errorf("%w: solution has %d columns, model has %d", solver.ErrBackend, len(sol.cols), m.NumVars())
	}

	res.Status, res.Reason = classify(sol, out.String())
	if res.Status.HasSolution() || res.Status == solver.TimedOut && sol.status == 'f' {
		res.Values = sol.cols
		res.HasIncumbent = true
		res.Objective = m.ObjectiveValue(sol.cols)
	}
	res.WallTime = time.Since(start)
	return res, nil
}

// classify maps the solution status and driver output to a solver status.
func classify(sol *solution, output string) (solver.Status, string) {
	timeLimit := strings.Contains(output, "TIME LIMIT EXCEEDED")
	if sol.kind == "bas" {
		switch {
		case sol.status == 'f' && sol.dual == 'f':
			return solver.Optimal, ""
		case sol.status == 'n' || strings.Contains(output, "NO PRIMAL FEASIBLE"):
			return solver.Infeasible, "no primal feasible solution"
		case sol.status == 'f' && sol.dual == 'n':
			return solver.Unbounded, "no dual feasible solution"
		case timeLimit:
			return solver.TimedOut, "time limit exceeded"
		}
		return solver.SolverError, fmt.Sprintf("basic solution status %c/%c", sol.status, sol.dual)
	}
	switch {
	case sol.status == 'o':
		return solver.Optimal, ""
	case timeLimit:
		return solver.TimedOut, "time limit exceeded"
	case sol.status == 'f':
		return solver.Feasible, "stopped at the relative gap"
	case sol.status == 'n' || strings.Contains(output, "NO PRIMAL FEASIBLE") || strings.Contains(output, "NO INTEGER FEASIBLE"):
		return solver.Infeasible, "no integer feasible solution"
	case strings.Contains(output, "UNBOUNDED"):
		return solver.Unbounded, "relaxation unbounded"
	}
	return solver.SolverError, "undefined solution: " + tail(output)
}

// minimization returns m, or a copy with the objective negated when m
// maximises.
func minimization(m *milp.Model) *milp.Model {
	if m.Objective.Sense == milp.Minimize {
		return m
	}
	cp := *m
	cp.Objective = milp.Objective{Constant: -m.Objective.Constant, Sense: milp.Minimize}
	for _, t := range m.Objective.Terms {
		cp.Objective.Terms = append(cp.Objective.Terms, milp.Term{Var: t.Var, Coef: -t.Coef})
	}
	return &cp
}

func writeModel(path string, m *milp.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteMPS(f, m, export.MPSOptions{GenericNames: true}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 400 {
		return "..." + s[len(s)-400:]
	}
	return s
}
