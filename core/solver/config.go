package solver

import (
	"errors"
	"time"

	"github.com/kilianp07/fleetplan/core/factory"
)

// DefaultBackend is the backend used when none is configured.
const DefaultBackend = "glpsol"

// Config holds the adapter settings and the backend module to instantiate.
type Config struct {
	Backend     factory.ModuleConfig `json:"backend"`
	TimeLimit   time.Duration        `json:"time_limit"`
	RelativeGap float64              `json:"relative_gap"`
	// RelaxFactor multiplies the time limit and gap of the retry attempt.
	RelaxFactor  float64       `json:"relax_factor"`
	DisableRetry bool          `json:"disable_retry"`
	Grace        time.Duration `json:"grace"`
	// Sessions bounds the number of concurrent solves.
	Sessions        int     `json:"sessions"`
	VerifyTolerance float64 `json:"verify_tolerance"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend.Type == "" {
		c.Backend.Type = DefaultBackend
	}
	if c.TimeLimit == 0 {
		c.TimeLimit = time.Minute
	}
	if c.RelaxFactor == 0 {
		c.RelaxFactor = 2
	}
	if c.Grace == 0 {
		c.Grace = 2 * time.Second
	}
	if c.Sessions == 0 {
		c.Sessions = 1
	}
	if c.VerifyTolerance == 0 {
		c.VerifyTolerance = 1e-5
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.TimeLimit < 0:
		return errors.New("solver.time_limit must not be negative")
	case c.RelativeGap < 0 || c.RelativeGap >= 1:
		return errors.New("solver.relative_gap must be in [0,1)")
	case c.RelaxFactor < 1:
		return errors.New("solver.relax_factor must be at least 1")
	case c.Sessions < 1:
		return errors.New("solver.sessions must be positive")
	case c.VerifyTolerance < 0:
		return errors.New("solver.verify_tolerance must not be negative")
	}
	return nil
}
