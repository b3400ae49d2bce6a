// Package plugins links the built-in solver backends and metrics sinks into
// the binary. Importing it registers them with their registries.
package plugins

import (
	_ "github.com/kilianp07/fleetplan/infra/metrics"
	_ "github.com/kilianp07/fleetplan/infra/solver/glpsol"
	_ "github.com/kilianp07/fleetplan/infra/solver/gonum"
)
