package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/fleetplan/config"
	coremetrics "github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/core/params"
	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/core/results"
	"github.com/kilianp07/fleetplan/core/solver"
	"github.com/kilianp07/fleetplan/core/sweep"
	"github.com/kilianp07/fleetplan/infra/dataset"
	"github.com/kilianp07/fleetplan/infra/logger"
	"github.com/kilianp07/fleetplan/infra/metrics"
	"github.com/kilianp07/fleetplan/infra/mqtt"
	"github.com/kilianp07/fleetplan/internal/eventbus"
	"github.com/kilianp07/fleetplan/pkg/export"

	_ "github.com/kilianp07/fleetplan/app/plugins"
)

// Service wires the solver, the sweep driver and their observers from the
// configuration.
type Service struct {
	Driver  *sweep.Driver
	Adapter *solver.Adapter

	cfg   *config.Config
	sink  coremetrics.MetricsSink
	store results.Store
	bus   *eventbus.TypedBus[sweep.RowEvent]
	log   logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Setup(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	backend, err := solver.NewBackend(cfg.Solver.Backend)
	if err != nil {
		coremetrics.Close(sink)
		return nil, fmt.Errorf("solver backend: %w", err)
	}
	adapter, err := solver.NewAdapter(backend, cfg.Solver, sink, logger.New("solver"))
	if err != nil {
		coremetrics.Close(sink)
		return nil, fmt.Errorf("solver adapter: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		coremetrics.Close(sink)
		return nil, fmt.Errorf("results store: %w", err)
	}

	bus := eventbus.NewTyped[sweep.RowEvent]()
	driver := sweep.New(adapter, cfg.Planner, cfg.Sweep.Concurrency)
	driver.Bus = bus
	driver.Store = store
	driver.Sink = sink
	driver.Log = logger.New("sweep")

	logg.Infow("service ready", map[string]any{
		"backend":     adapter.Backend(),
		"sessions":    adapter.Sessions(),
		"concurrency": cfg.Sweep.Concurrency,
		"results":     cfg.Results.Backend,
	})
	return &Service{
		Driver:  driver,
		Adapter: adapter,
		cfg:     cfg,
		sink:    sink,
		store:   store,
		bus:     bus,
		log:     logg,
	}, nil
}

func openStore(cfg *config.Config) (results.Store, error) {
	if cfg.Results.Backend == results.BackendMQTT {
		p, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return results.Open(cfg.Results)
}

// LoadDataset reads the configured dataset and validates it into a snapshot.
func LoadDataset(cfg *config.Config) (*dataset.Dataset, *params.Snapshot, error) {
	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return nil, nil, err
	}
	snap, err := ds.Snapshot()
	if err != nil {
		return ds, nil, err
	}
	return ds, snap, nil
}

// Sweep runs the configured sweep and writes the rendered rows to w, or to
// the configured output file when one is set. The Prometheus endpoint, when
// configured, is served for the duration of the sweep.
func (s *Service) Sweep(ctx context.Context, w io.Writer) ([]sweep.Row, error) {
	ds, snap, err := LoadDataset(s.cfg)
	if err != nil {
		return nil, err
	}
	targets := s.cfg.Sweep.ResolveTargets(ds.Targets)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	progress := s.bus.SubscribeBuffered(len(targets))
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range progress {
			s.logRow(ev.Row)
		}
	}()

	s.log.Infow("sweep started", map[string]any{
		"dataset":     ds.Name,
		"fingerprint": snap.Fingerprint(),
		"targets":     targets,
	})
	rows, err := s.Driver.Run(ctx, snap, targets)
	s.bus.Unsubscribe(progress)
	cancel()
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return rows, s.write(w, rows)
}

func (s *Service) logRow(r sweep.Row) {
	fields := map[string]any{
		"run_id": r.RunID,
		"index":  r.Index,
		"target": r.Target,
		"status": r.Status.String(),
	}
	if r.Failed || r.Summary == nil {
		fields["reason"] = string(r.Reason)
		s.log.Infow("sweep row failed", fields)
		return
	}
	fields["total_cost"] = r.Summary.TotalCost
	fields["penalty_cost"] = r.Summary.PenaltyCost
	s.log.Infow("sweep row solved", fields)
}

func (s *Service) write(w io.Writer, rows []sweep.Row) error {
	path := s.cfg.Output.Path
	if path == "" {
		return export.Write(w, s.cfg.Output.Format, rows)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, s.cfg.Output.Format, rows); err != nil {
		_ = f.Close()
		return err
	}
	s.log.Infof("results written to %s", path)
	return f.Close()
}

// BuildModel builds the model of a single target with the configured
// planner options.
func BuildModel(cfg *config.Config, target float64) (*planner.Plan, error) {
	_, snap, err := LoadDataset(cfg)
	if err != nil {
		return nil, err
	}
	return planner.Build(snap, target, cfg.Planner)
}

// Close releases the results store, the event bus and the metrics sinks.
func (s *Service) Close() error {
	s.bus.Close()
	err := s.store.Close()
	coremetrics.Close(s.sink)
	if err != nil {
		return fmt.Errorf("close results store: %w", err)
	}
	return nil
}
