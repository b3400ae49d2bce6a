package solver

import "github.com/kilianp07/fleetplan/core/factory"

var backendRegistry = factory.NewRegistry[Backend]()

// RegisterBackend adds a backend factory identified by name.
func RegisterBackend(name string, f factory.Factory[Backend]) error {
	return backendRegistry.Register(name, f)
}

// NewBackend creates the backend described by cfg.
func NewBackend(cfg factory.ModuleConfig) (Backend, error) {
	return backendRegistry.Create(cfg)
}

// BackendNames lists the registered backends.
func BackendNames() []string { return backendRegistry.Names() }
