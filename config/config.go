// Package config loads the fleetplan configuration from a YAML or JSON file
// with K_ environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/core/results"
	"github.com/kilianp07/fleetplan/core/solver"
	"github.com/kilianp07/fleetplan/infra/logger"
	"github.com/kilianp07/fleetplan/infra/mqtt"
)

type Config struct {
	Dataset DatasetConfig   `json:"dataset"`
	Solver  solver.Config   `json:"solver"`
	Planner planner.Options `json:"planner"`
	Sweep   SweepConfig     `json:"sweep"`
	Metrics metrics.Config  `json:"metrics"`
	Results results.Config  `json:"results"`
	MQTT    mqtt.Config     `json:"mqtt"`
	Output  OutputConfig    `json:"output"`
	Logging logger.Config   `json:"logging"`
}

// Load reads path, applies K_ environment overrides, then defaults and
// validation. A relative dataset path is resolved against the directory of
// the configuration file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if p := cfg.Dataset.Path; p != "" && !filepath.IsAbs(p) {
		cfg.Dataset.Path = filepath.Join(filepath.Dir(path), p)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	if c.Planner.Formulation == "" {
		c.Planner.Formulation = planner.StartIndexed
	}
	if c.Sweep.Concurrency == 0 {
		c.Sweep.Concurrency = c.Solver.Sessions
	}
	c.Results.SetDefaults()
	if c.Results.Backend == results.BackendMQTT {
		c.MQTT.SetDefaults()
	}
	c.Output.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section. The mqtt section is only checked when it
// backs the results store.
func (c Config) Validate() error {
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	switch c.Planner.Formulation {
	case planner.StartIndexed, planner.BigM:
	default:
		return fmt.Errorf("planner.formulation: unknown formulation %q", c.Planner.Formulation)
	}
	if r := c.Planner.ReserveFraction; r < 0 || r >= 1 {
		return fmt.Errorf("planner.reserve_fraction must be in [0,1), got %g", r)
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Results.Validate(); err != nil {
		return err
	}
	if c.Results.Backend == results.BackendMQTT {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
