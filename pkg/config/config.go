package config

import (
	"strings"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/errors"
)

// Config is the single configuration structure for quiver. Every section
// has production defaults from NewConfig; files and environment variables
// only need to name what they change.
type Config struct {
	// Logging configures the process-wide zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Engine tunes the arrow-go codecs
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Compression selects the IPC body codec used when writing
	Compression compression.Config `yaml:"compression" json:"compression"`

	// Sniffer controls format detection
	Sniffer SnifferConfig `yaml:"sniffer" json:"sniffer"`

	// Metrics configures the Prometheus collectors
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures OpenTelemetry spans
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
	// Encoding is json or console
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// EngineConfig contains codec settings.
type EngineConfig struct {
	// Allocator is "go" or "checked". The checked allocator tracks every
	// buffer and is meant for leak hunting, not production.
	Allocator string `yaml:"allocator" json:"allocator"`
	// ParquetCodec compresses Parquet column chunks when the write request
	// itself asks for no compression (NONE, LZ4, ZSTD)
	ParquetCodec string `yaml:"parquet_codec" json:"parquet_codec"`
	// RowGroupLength caps rows per Parquet row group; 0 keeps the library
	// default
	RowGroupLength int64 `yaml:"row_group_length" json:"row_group_length"`
	// MaxBatchRows splits IPC batches on write; 0 disables splitting
	MaxBatchRows int64 `yaml:"max_batch_rows" json:"max_batch_rows"`
}

// SnifferConfig contains format detection settings.
type SnifferConfig struct {
	// Strict turns advisory detection warnings into errors
	Strict bool `yaml:"strict" json:"strict"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	// Addr is the listen address for the CLI metrics endpoint, e.g. ":9090"
	Addr string `yaml:"addr" json:"addr"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Exporter is stdout or none
	Exporter     string  `yaml:"exporter" json:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
	ServiceName  string  `yaml:"service_name" json:"service_name"`
}

// NewConfig returns a Config with defaults for every section.
//
// Example:
//
//	cfg := config.NewConfig()
//	cfg.Compression = compression.WithZstd()
func NewConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Engine: EngineConfig{
			Allocator:    "go",
			ParquetCodec: string(compression.None),
		},
		Compression: compression.DefaultConfig(),
		Sniffer:     SnifferConfig{Strict: false},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "quiver",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "stdout",
			SamplingRate: 1.0,
			ServiceName:  "quiver",
		},
	}
}

// Validate checks every section and returns the first problem as a
// VALIDATION error.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Validation("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "json", "console", "":
	default:
		return errors.Validation("logging.encoding must be json or console; got %q", c.Logging.Encoding)
	}

	switch c.Engine.Allocator {
	case "go", "checked", "":
	default:
		return errors.Validation("engine.allocator must be go or checked; got %q", c.Engine.Allocator)
	}
	if _, err := compression.ParseAlgorithm(c.Engine.ParquetCodec); err != nil {
		return errors.Wrap(err, errors.CodeValidation, "engine.parquet_codec")
	}
	if c.Engine.RowGroupLength < 0 {
		return errors.Validation("engine.row_group_length cannot be negative")
	}
	if c.Engine.MaxBatchRows < 0 {
		return errors.Validation("engine.max_batch_rows cannot be negative")
	}

	if err := c.Compression.Validate(); err != nil {
		return err
	}

	switch c.Tracing.Exporter {
	case "stdout", "none", "":
	default:
		return errors.Validation("tracing.exporter must be stdout or none; got %q", c.Tracing.Exporter)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.Validation("tracing.sampling_rate must be within [0, 1]; got %v", c.Tracing.SamplingRate)
	}
	return nil
}
