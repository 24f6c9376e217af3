package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bvkay/LEMI-423-Reader/internal/app/pipeline"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

type Config struct {
	Batch     BatchConfig     `yaml:"batch"`
	Output    OutputConfig    `yaml:"output"`
	Timescale TimescaleConfig `yaml:"timescale"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Journal   JournalConfig   `yaml:"journal"`
}

type BatchConfig struct {
	Metadata string `yaml:"metadata"`
	BaseDir  string `yaml:"base_dir"`
	// Workers is a pointer so an explicit 0 is rejected instead of defaulted.
	Workers *int `yaml:"workers"`
	Resume  bool `yaml:"resume"`
}

type OutputConfig struct {
	CSVDir string `yaml:"csv_dir"`
}

// TimescaleConfig enables the database sink when ConnString is set.
type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
	BatchRows  int    `yaml:"batch_rows"`
}

// NATSConfig enables outcome notifications when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig starts the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type JournalConfig struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.IOError{Op: "read", Path: path, Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &domain.ConfigurationError{Field: path, Reason: err.Error()}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize fills defaults and validates. Callers that build a Config from
// flags alone use it in place of Load.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

// Policy returns the orchestrator settings. An unset worker count falls back
// to DefaultWorkers so a Config that skipped Finalize is still usable.
func (c *Config) Policy() ports.Policy {
	workers := pipeline.DefaultWorkers()
	if c.Batch.Workers != nil {
		workers = *c.Batch.Workers
	}
	return ports.Policy{Workers: workers, Resume: c.Batch.Resume}
}

func (c *Config) applyDefaults() {
	if c.Batch.Workers == nil {
		n := pipeline.DefaultWorkers()
		c.Batch.Workers = &n
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "lemi_samples"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "lemi423.outcomes"
	}
	if c.Batch.Resume && c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
}

func (c *Config) validate() error {
	if c.Batch.Metadata == "" {
		return &domain.ConfigurationError{Field: "batch.metadata", Reason: "is required"}
	}
	if w := *c.Batch.Workers; w <= 0 {
		return &domain.ConfigurationError{Field: "batch.workers", Reason: fmt.Sprintf("%d must be > 0", w)}
	}
	if c.Timescale.BatchRows < 0 {
		return &domain.ConfigurationError{Field: "timescale.batch_rows", Reason: "must not be negative"}
	}
	return nil
}
