// Package config loads and validates the ingest daemon configuration.
//
// Precedence: built-in defaults, then the YAML config file, then
// LOAM_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loamsearch/ingest/internal/docmap"
	"github.com/loamsearch/ingest/internal/logging"
)

// DefaultCommitTimeout bounds how long documents buffer in an
// in-progress split before rotation.
const DefaultCommitTimeout = Duration(60 * time.Second)

// Config is the complete ingest daemon configuration.
type Config struct {
	// IndexID identifies the index this daemon ingests into.
	IndexID string `yaml:"index_id"`

	// SpoolDir is the directory watched for incoming batch files.
	SpoolDir string `yaml:"spool_dir"`

	// ScratchDir is the working directory for in-progress splits.
	// Empty means a process-owned temp directory.
	ScratchDir string `yaml:"scratch_dir"`

	// CommitTimeout bounds how long a split accumulates before it is
	// rotated and handed downstream.
	CommitTimeout Duration `yaml:"commit_timeout"`

	// SinkBuffer is the handoff channel capacity. Zero means fully
	// synchronous handoff to the downstream stage.
	SinkBuffer int `yaml:"sink_buffer"`

	// MetricsDB is the SQLite path for the published-splits ledger.
	// Empty disables the ledger.
	MetricsDB string `yaml:"metrics_db"`

	// Mapping declares the document schema.
	Mapping docmap.Config `yaml:"mapping"`

	// Logging configures structured logging.
	Logging logging.Config `yaml:"logging"`
}

// Default returns the built-in configuration defaults. The mapping has
// no default: a schema must be declared explicitly.
func Default() Config {
	return Config{
		CommitTimeout: DefaultCommitTimeout,
		Logging:       logging.DefaultConfig(),
	}
}

// Load reads the config file at path, applies env overrides, and
// validates the result. A missing file is an error: the daemon cannot
// guess an index id or a schema.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays LOAM_* environment variables. Env wins over file.
func (c *Config) applyEnv() {
	if v := os.Getenv("LOAM_INDEX_ID"); v != "" {
		c.IndexID = v
	}
	if v := os.Getenv("LOAM_SPOOL_DIR"); v != "" {
		c.SpoolDir = v
	}
	if v := os.Getenv("LOAM_SCRATCH_DIR"); v != "" {
		c.ScratchDir = v
	}
	if v := os.Getenv("LOAM_COMMIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CommitTimeout = Duration(d)
		}
	}
	if v := os.Getenv("LOAM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for use by the daemon.
func (c Config) Validate() error {
	if c.IndexID == "" {
		return fmt.Errorf("index_id is required")
	}
	if c.SpoolDir == "" {
		return fmt.Errorf("spool_dir is required")
	}
	if c.CommitTimeout < 0 {
		return fmt.Errorf("commit_timeout must not be negative")
	}
	if c.SinkBuffer < 0 {
		return fmt.Errorf("sink_buffer must not be negative")
	}
	if err := c.Mapping.Validate(); err != nil {
		return fmt.Errorf("mapping: %w", err)
	}
	return nil
}
