package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted by Config.
const (
	BackendNone   = "none"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendMQTT   = "mqtt"
)

// Config selects and tunes the results store.
type Config struct {
	Backend    string `json:"backend" yaml:"backend"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendJSONL:
			c.Path = "results/sweep.jsonl"
		case BackendSQLite:
			c.Path = "results/sweep.db"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name and rotation settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendJSONL, BackendSQLite, BackendMQTT:
	default:
		return fmt.Errorf("results: unknown backend %q", c.Backend)
	}
	if (c.Backend == BackendJSONL || c.Backend == BackendSQLite) && c.Path == "" {
		return fmt.Errorf("results: path is required for %s", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("results: rotation settings must not be negative")
	}
	return nil
}

// Open returns the file-backed store named by cfg. The mqtt backend is
// built by the caller since it needs a broker connection.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendJSONL:
		return NewJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		if !strings.HasPrefix(cfg.Path, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, err
			}
		}
		return NewSQLiteStore(cfg.Path)
	case BackendNone:
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("results: backend %q cannot be opened here", cfg.Backend)
}
