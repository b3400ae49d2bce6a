package solver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetplan/core/factory"
	"github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/core/milp"
)

type fakeBackend struct {
	calls atomic.Int32
	opts  []Options
	mu    sync.Mutex
	fn    func(ctx context.Context, call int, opts Options) (Result, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Solve(ctx context.Context, _ *milp.Model, opts Options) (Result, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	return f.fn(ctx, n, opts)
}

type recordingSink struct {
	mu     sync.Mutex
	solves []metrics.SolveEvent
}

func (r *recordingSink) RecordSolve(ev metrics.SolveEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solves = append(r.solves, ev)
	return nil
}

func (r *recordingSink) RecordSweepRow(metrics.SweepRowEvent) error { return nil }

// tinyModel: min y + 2x  s.t.  x + y >= 1.5, x binary, y in [0,10].
func tinyModel() *milp.Model {
	m := milp.New("tiny")
	x := m.AddVar("x", milp.Binary, 0, 1)
	y := m.AddVar("y", milp.Continuous, 0, 10)
	m.AddConstraint("cover", []milp.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, milp.GE, 1.5)
	m.AddObjectiveTerm(y, 1)
	m.AddObjectiveTerm(x, 2)
	return m
}

func newAdapter(t *testing.T, b Backend, cfg Config, sink metrics.MetricsSink) *Adapter {
	t.Helper()
	a, err := NewAdapter(b, cfg, sink, nil)
	require.NoError(t, err)
	return a
}

func TestAdapterOptimal(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		return Result{Status: Optimal, Values: []float64{0, 1.5}, Objective: 99}, nil
	}}
	sink := &recordingSink{}
	res := newAdapter(t, b, Config{TimeLimit: time.Second}, sink).Solve(context.Background(), tinyModel())

	assert.Equal(t, Optimal, res.Status)
	assert.True(t, res.HasIncumbent)
	assert.InDelta(t, 1.5, res.Objective, 1e-9, "objective is recomputed from the values")
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "fake", res.Backend)
	require.Len(t, sink.solves, 1)
	assert.Equal(t, "optimal", sink.solves[0].Status)
	assert.Equal(t, 2, sink.solves[0].Vars)
	assert.Equal(t, 1, sink.solves[0].Constraints)
}

func TestAdapterRejectsInvalidAssignment(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		return Result{Status: Optimal, Values: []float64{0, 0}}, nil
	}}
	res := newAdapter(t, b, Config{}, nil).Solve(context.Background(), tinyModel())
	assert.Equal(t, SolverError, res.Status)
	assert.Contains(t, res.Reason, "cover")
	assert.Nil(t, res.Values)
	assert.Equal(t, 2, res.Attempts)
	assert.EqualValues(t, 2, b.calls.Load())
}

func TestAdapterRetriesOnceWithRelaxedLimits(t *testing.T) {
	b := &fakeBackend{fn: func(_ context.Context, call int, _ Options) (Result, error) {
		if call == 1 {
			return Result{}, errors.New("numerical trouble")
		}
		return Result{Status: Feasible, Values: []float64{1, 0.5}}, nil
	}}
	sink := &recordingSink{}
	res := newAdapter(t, b, Config{TimeLimit: time.Second, RelativeGap: 0.01}, sink).Solve(context.Background(), tinyModel())

	assert.Equal(t, Feasible, res.Status)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, b.opts, 2)
	assert.Equal(t, 2*time.Second, b.opts[1].TimeLimit)
	assert.InDelta(t, 0.02, b.opts[1].RelativeGap, 1e-12)
	require.Len(t, sink.solves, 2)
	assert.Equal(t, "solver_error", sink.solves[0].Status)
}

func TestAdapterNoRetryWhenDisabled(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		return Result{}, errors.New("license expired")
	}}
	res := newAdapter(t, b, Config{DisableRetry: true}, nil).Solve(context.Background(), tinyModel())
	assert.Equal(t, SolverError, res.Status)
	assert.Equal(t, "license expired", res.Reason)
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestAdapterTimeoutKeepsIncumbent(t *testing.T) {
	b := &fakeBackend{fn: func(ctx context.Context, _ int, _ Options) (Result, error) {
		<-ctx.Done()
		return Result{Status: TimedOut, Values: []float64{1, 0.5}, HasIncumbent: true}, nil
	}}
	res := newAdapter(t, b, Config{TimeLimit: 20 * time.Millisecond}, nil).Solve(context.Background(), tinyModel())
	assert.Equal(t, TimedOut, res.Status)
	assert.False(t, res.Status.HasSolution())
	assert.True(t, res.HasIncumbent)
	assert.InDelta(t, 2.5, res.Objective, 1e-9)
	assert.Equal(t, 1, res.Attempts)
}

func TestAdapterAbandonsUnresponsiveBackend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		<-release
		return Result{Status: Optimal, Values: []float64{0, 1.5}}, nil
	}}
	cfg := Config{TimeLimit: 10 * time.Millisecond, Grace: 10 * time.Millisecond}
	start := time.Now()
	res := newAdapter(t, b, cfg, nil).Solve(context.Background(), tinyModel())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, TimedOut, res.Status)
	assert.False(t, res.HasIncumbent)
	assert.Nil(t, res.Values)
}

func TestAdapterHoldsSessionOfAbandonedCall(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{fn: func(_ context.Context, call int, _ Options) (Result, error) {
		if call == 1 {
			<-release
		}
		return Result{Status: Optimal, Values: []float64{0, 1.5}}, nil
	}}
	a := newAdapter(t, b, Config{Sessions: 1, TimeLimit: 10 * time.Millisecond, Grace: 10 * time.Millisecond}, nil)

	res := a.Solve(context.Background(), tinyModel())
	require.Equal(t, TimedOut, res.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res = a.Solve(ctx, tinyModel())
	assert.True(t, res.Cancelled, "the session is still held by the running call")
	assert.EqualValues(t, 1, b.calls.Load())

	close(release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	res = a.Solve(ctx2, tinyModel())
	assert.Equal(t, Optimal, res.Status)
	assert.EqualValues(t, 2, b.calls.Load())
}

func TestAdapterRetryGapIsCapped(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		return Result{}, errors.New("numerical trouble")
	}}
	newAdapter(t, b, Config{RelativeGap: 0.4, RelaxFactor: 3}, nil).Solve(context.Background(), tinyModel())
	require.Len(t, b.opts, 2)
	assert.InDelta(t, maxRetryGap, b.opts[1].RelativeGap, 1e-12)

	b = &fakeBackend{fn: b.fn}
	newAdapter(t, b, Config{RelativeGap: 0.6, RelaxFactor: 2}, nil).Solve(context.Background(), tinyModel())
	require.Len(t, b.opts, 2)
	assert.InDelta(t, 0.6, b.opts[1].RelativeGap, 1e-12)
	assert.Less(t, b.opts[1].RelativeGap, 1.0)
}

func TestAdapterDeadlineErrorIsTimeout(t *testing.T) {
	b := &fakeBackend{fn: func(ctx context.Context, _ int, _ Options) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	res := newAdapter(t, b, Config{TimeLimit: 10 * time.Millisecond}, nil).Solve(context.Background(), tinyModel())
	assert.Equal(t, TimedOut, res.Status)
	assert.EqualValues(t, 1, b.calls.Load(), "timeouts are not retried")
}

func TestAdapterParentCancellation(t *testing.T) {
	b := &fakeBackend{fn: func(ctx context.Context, _ int, _ Options) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	a := newAdapter(t, b, Config{TimeLimit: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res := a.Solve(ctx, tinyModel())
	assert.True(t, res.Cancelled)
	assert.Equal(t, SolverError, res.Status)
	assert.EqualValues(t, 1, b.calls.Load())

	res = a.Solve(ctx, tinyModel())
	assert.True(t, res.Cancelled)
	assert.EqualValues(t, 1, b.calls.Load(), "no backend call on a cancelled context")
}

func TestAdapterRecoversPanics(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		panic("index out of range")
	}}
	res := newAdapter(t, b, Config{}, nil).Solve(context.Background(), tinyModel())
	assert.Equal(t, SolverError, res.Status)
	assert.Contains(t, res.Reason, "index out of range")
	assert.Equal(t, 2, res.Attempts)
}

func TestAdapterStripsValuesOnInfeasible(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		return Result{Status: Infeasible, Values: []float64{1, 1}, Objective: 3}, nil
	}}
	res := newAdapter(t, b, Config{}, nil).Solve(context.Background(), tinyModel())
	assert.Equal(t, Infeasible, res.Status)
	assert.Nil(t, res.Values)
	assert.Zero(t, res.Objective)
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestAdapterBoundsSessions(t *testing.T) {
	var running, peak atomic.Int32
	b := &fakeBackend{fn: func(context.Context, int, Options) (Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return Result{Status: Optimal, Values: []float64{0, 1.5}}, nil
	}}
	a := newAdapter(t, b, Config{Sessions: 2}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Solve(context.Background(), tinyModel())
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.EqualValues(t, 8, b.calls.Load())
}

func TestNewAdapterValidation(t *testing.T) {
	_, err := NewAdapter(nil, Config{}, nil, nil)
	assert.Error(t, err)
	_, err = NewAdapter(&fakeBackend{}, Config{RelativeGap: 2}, nil, nil)
	assert.Error(t, err)
	_, err = NewAdapter(&fakeBackend{}, Config{RelaxFactor: 0.5}, nil, nil)
	assert.Error(t, err)
}

func TestStatusText(t *testing.T) {
	for s := Optimal; s <= SolverError; s++ {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	assert.True(t, Feasible.HasSolution())
	assert.False(t, TimedOut.HasSolution())
	assert.Equal(t, "timed_out", TimedOut.String())
	var s Status
	assert.Error(t, s.UnmarshalText([]byte("great")))
}

func TestBackendRegistry(t *testing.T) {
	require.NoError(t, RegisterBackend("fake-registry", func(conf map[string]any) (Backend, error) {
		var c struct {
			Label string `json:"label"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return &fakeBackend{}, nil
	}))
	assert.Contains(t, BackendNames(), "fake-registry")
	b, err := NewBackend(factory.ModuleConfig{Type: "fake-registry", Conf: map[string]any{"label": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "fake", b.Name())
	_, err = NewBackend(factory.ModuleConfig{Type: "fake-registry", Conf: map[string]any{"lable": "x"}})
	assert.Error(t, err)
	_, err = NewBackend(factory.ModuleConfig{Type: "nope"})
	assert.ErrorIs(t, err, factory.ErrUnknownType)
}
