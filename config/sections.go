package config

import (
	"fmt"
	"slices"
)

// DefaultTargets is swept when neither the configuration nor the dataset
// lists targets.
var DefaultTargets = []float64{0.2, 0.4, 0.6, 0.8, 1.0}

// DatasetConfig locates the input dataset.
type DatasetConfig struct {
	Path string `json:"path"`
}

// SweepConfig selects the targets to sweep and how many run at once.
type SweepConfig struct {
	// Targets overrides the targets listed in the dataset.
	Targets     []float64 `json:"targets"`
	Concurrency int       `json:"concurrency"`
}

// Validate checks that every target is in (0,1].
func (c SweepConfig) Validate() error {
	for i, t := range c.Targets {
		if !(t > 0 && t <= 1) {
			return fmt.Errorf("sweep.targets[%d]: %g is outside (0,1]", i, t)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("sweep.concurrency must not be negative")
	}
	return nil
}

// ResolveTargets returns the configured targets, else the dataset ones,
// else DefaultTargets.
func (c SweepConfig) ResolveTargets(fromDataset []float64) []float64 {
	switch {
	case len(c.Targets) > 0:
		return slices.Clone(c.Targets)
	case len(fromDataset) > 0:
		return slices.Clone(fromDataset)
	}
	return slices.Clone(DefaultTargets)
}

// OutputConfig controls how the sweep table is rendered.
type OutputConfig struct {
	// Format is one of table, csv or json.
	Format string `json:"format"`
	// Path is the output file; empty means stdout.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = "table"
	}
}

// Validate checks the format name.
func (c OutputConfig) Validate() error {
	switch c.Format {
	case "table", "csv", "json":
		return nil
	}
	return fmt.Errorf("output.format: unknown format %q", c.Format)
}
