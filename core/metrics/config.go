package metrics

import (
	"fmt"

	"github.com/kilianp07/fleetplan/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddr, when set, exposes /metrics on that address while a
	// sweep runs.
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}

// Validate checks that every sink names a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: missing type", i)
		}
	}
	return nil
}
