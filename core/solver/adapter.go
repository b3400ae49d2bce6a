package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kilianp07/fleetplan/core/logger"
	"github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/core/milp"
)

// Adapter wraps a Backend with deadlines, retries, verification and
// observability. It is safe for concurrent use.
type Adapter struct {
	backend Backend
	cfg     Config
	sem     *semaphore.Weighted
	sink    metrics.MetricsSink
	log     logger.Logger
	now     func() time.Time
}

// NewAdapter returns an Adapter for b. cfg is defaulted before use.
func NewAdapter(b Backend, cfg Config, sink metrics.MetricsSink, log logger.Logger) (*Adapter, error) {
	if b == nil {
		return nil, errors.New("solver: nil backend")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		backend: b,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.Sessions)),
		sink:    metrics.OrNop(sink),
		log:     logger.OrNop(log),
		now:     time.Now,
	}, nil
}

// Backend returns the wrapped backend name.
func (a *Adapter) Backend() string { return a.backend.Name() }

// Sessions returns the configured number of concurrent solves.
func (a *Adapter) Sessions() int { return a.cfg.Sessions }

// maxRetryGap caps the relative gap of the relaxed retry.
const maxRetryGap = 0.5

type outcome struct {
	res Result
	err error
}

// Solve runs the backend on m. Failures are reported through Result.Status;
// a SolverError is retried once with relaxed limits unless the parent
// context is done. A backend call abandoned after its deadline keeps its
// session until it actually returns.
func (a *Adapter) Solve(ctx context.Context, m *milp.Model) Result {
	start := a.now()
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return a.cancelled(err, start, 0)
	}

	opts := Options{TimeLimit: a.cfg.TimeLimit, RelativeGap: a.cfg.RelativeGap}
	res, pending := a.attempt(ctx, m, opts, 1)
	if pending == nil && res.Status == SolverError && !res.Cancelled && !a.cfg.DisableRetry {
		opts = a.relax(opts)
		a.log.Warnf("solve of %s failed (%s), retrying with time limit %s", m.Name, res.Reason, opts.TimeLimit)
		res, pending = a.attempt(ctx, m, opts, 2)
	}
	a.release(m, pending)
	res.WallTime = a.now().Sub(start)
	return res
}

// relax widens the limits of a retry. The gap never exceeds maxRetryGap
// unless the configured gap already does.
func (a *Adapter) relax(opts Options) Options {
	opts.TimeLimit = time.Duration(float64(opts.TimeLimit) * a.cfg.RelaxFactor)
	if gap := opts.RelativeGap * a.cfg.RelaxFactor; gap <= maxRetryGap {
		opts.RelativeGap = gap
	} else {
		opts.RelativeGap = math.Max(opts.RelativeGap, maxRetryGap)
	}
	return opts
}

// release frees the session slot, or hands it to a watcher when the backend
// call was abandoned and is still running.
func (a *Adapter) release(m *milp.Model, pending <-chan outcome) {
	if pending == nil {
		a.sem.Release(1)
		return
	}
	a.log.Warnf("backend still running on %s, session held until it returns", m.Name)
	go func() {
		<-pending
		a.sem.Release(1)
	}()
}

// attempt makes one backend call. The returned channel is non-nil when the
// call was abandoned; it yields once the backend returns.
func (a *Adapter) attempt(ctx context.Context, m *milp.Model, opts Options, n int) (Result, <-chan outcome) {
	begin := a.now()
	actx, cancel := ctx, context.CancelFunc(func() {})
	if opts.TimeLimit > 0 {
		actx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrBackend, r)}
			}
		}()
		res, err := a.backend.Solve(actx, m, opts)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	var pending <-chan outcome
	select {
	case out = <-done:
	case <-actx.Done():
		grace := time.NewTimer(a.cfg.Grace)
		select {
		case out = <-done:
		case <-grace.C:
			pending = done
		}
		grace.Stop()
	}
	abandoned := pending != nil

	var res Result
	switch {
	case ctx.Err() != nil && (abandoned || out.err != nil || !out.res.Status.HasSolution()):
		res = a.cancelled(ctx.Err(), begin, n)
	case abandoned:
		res = Result{Status: TimedOut, Reason: fmt.Sprintf("backend did not return within %s after the deadline", a.cfg.Grace)}
	case out.err != nil && errors.Is(actx.Err(), context.DeadlineExceeded):
		res = Result{Status: TimedOut, Reason: out.err.Error()}
	case out.err != nil:
		res = Result{Status: SolverError, Reason: out.err.Error()}
	default:
		res = a.normalize(m, out.res)
	}
	res.Attempts = n
	res.Backend = a.backend.Name()

	elapsed := a.now().Sub(begin)
	a.log.Infow("solve attempt", map[string]any{
		"model":     m.Name,
		"backend":   res.Backend,
		"attempt":   n,
		"status":    res.Status.String(),
		"objective": res.Objective,
		"incumbent": res.HasIncumbent,
		"elapsed":   elapsed.String(),
		"reason":    res.Reason,
		"abandoned": abandoned,
	})
	st := m.Stats()
	if err := a.sink.RecordSolve(metrics.SolveEvent{
		Model:        m.Name,
		Backend:      res.Backend,
		Status:       res.Status.String(),
		Attempt:      n,
		Duration:     elapsed,
		Objective:    res.Objective,
		HasIncumbent: res.HasIncumbent,
		Vars:         st.Vars,
		Constraints:  st.Constraints,
		Time:         a.now(),
	}); err != nil {
		a.log.Warnf("record solve: %v", err)
	}
	return res, pending
}

// normalize enforces the Result contract on what a backend returned.
func (a *Adapter) normalize(m *milp.Model, res Result) Result {
	n := m.NumVars()
	switch res.Status {
	case Optimal, Feasible:
		if len(res.Values) != n {
			return Result{Status: SolverError, Reason: fmt.Sprintf("backend returned %d values for %d variables", len(res.Values), n)}
		}
		if vs := m.Check(res.Values, a.cfg.VerifyTolerance); len(vs) > 0 {
			return Result{Status: SolverError, Reason: fmt.Sprintf("assignment violates %d constraints (first %s)", len(vs), vs[0])}
		}
		res.HasIncumbent = true
		res.Objective = m.ObjectiveValue(res.Values)
	case TimedOut:
		if !res.HasIncumbent || len(res.Values) != n || len(m.Check(res.Values, a.cfg.VerifyTolerance)) > 0 {
			res.HasIncumbent = false
			res.Values = nil
			res.Objective = 0
		} else {
			res.Objective = m.ObjectiveValue(res.Values)
		}
	case Infeasible, Unbounded, SolverError:
		res.Values = nil
		res.HasIncumbent = false
		res.Objective = 0
	default:
		return Result{Status: SolverError, Reason: fmt.Sprintf("backend returned %s", res.Status)}
	}
	return res
}

func (a *Adapter) cancelled(err error, begin time.Time, n int) Result {
	return Result{
		Status:    SolverError,
		Reason:    "cancelled: " + err.Error(),
		Cancelled: true,
		Attempts:  n,
		Backend:   a.backend.Name(),
		WallTime:  a.now().Sub(begin),
	}
}
