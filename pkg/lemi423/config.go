package lemi423

import (
	"github.com/bvkay/LEMI-423-Reader/internal/app/config"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy holds the worker count and resume switch.
	Policy = ports.Policy
	// BatchConfig points at the metadata table and site folders.
	BatchConfig = config.BatchConfig
	// OutputConfig configures the CSV sink.
	OutputConfig = config.OutputConfig
	// TimescaleConfig configures the database sink.
	TimescaleConfig = config.TimescaleConfig
	// NATSConfig configures outcome notifications.
	NATSConfig = config.NATSConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// JournalConfig configures the resume journal.
	JournalConfig = config.JournalConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
