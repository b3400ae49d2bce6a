package plugins

import (
	"github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/core/results"
	"github.com/kilianp07/fleetplan/core/solver"
)

// Catalog lists the module types that can be named in the configuration.
type Catalog struct {
	Backends []string `json:"backends"`
	Sinks    []string `json:"sinks"`
	Stores   []string `json:"stores"`
}

// Available returns the registered module types.
func Available() Catalog {
	return Catalog{
		Backends: solver.BackendNames(),
		Sinks:    metrics.SinkNames(),
		Stores:   []string{results.BackendNone, results.BackendJSONL, results.BackendSQLite, results.BackendMQTT},
	}
}
