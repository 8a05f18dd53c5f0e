package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quiver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"encoding", func(c *Config) { c.Logging.Encoding = "xml" }, "logging.encoding"},
		{"allocator", func(c *Config) { c.Engine.Allocator = "arena" }, "engine.allocator"},
		{"parquet codec", func(c *Config) { c.Engine.ParquetCodec = "brotli" }, "engine.parquet_codec"},
		{"row group", func(c *Config) { c.Engine.RowGroupLength = -1 }, "engine.row_group_length"},
		{"batch rows", func(c *Config) { c.Engine.MaxBatchRows = -5 }, "engine.max_batch_rows"},
		{"compression", func(c *Config) { c.Compression.Algorithm = "lzma" }, "lzma"},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"sampling", func(c *Config) { c.Tracing.SamplingRate = 1.5 }, "tracing.sampling_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidation))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadKeepsDefaultsForMissingSections(t *testing.T) {
	t.Setenv("TEST_LEVEL", "debug")
	path := writeFile(t, "logging:\n  level: ${TEST_LEVEL}\nsniffer:\n  strict: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Sniffer.Strict)
	assert.Equal(t, "json", cfg.Logging.Encoding)
	assert.Equal(t, "quiver", cfg.Metrics.Namespace)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.CodeIO))

	_, err = Load(writeFile(t, "logging: [not, a, map]\n"))
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	_, err = Load(writeFile(t, "engine:\n  allocator: arena\n"))
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestSaveThenLoad(t *testing.T) {
	cfg := NewConfig()
	cfg.Compression = compression.WithLZ4()
	cfg.Engine.MaxBatchRows = 1024

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoadWithViperEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "compression:\n  enabled: true\n  algorithm: lz4\nengine:\n  max_batch_rows: 10\n")
	t.Setenv("QUIVER_ENGINE_MAX_BATCH_ROWS", "64")
	t.Setenv("QUIVER_TRACING_SAMPLING_RATE", "0.25")

	cfg, err := LoadWithViper(path, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Compression.Enabled)
	assert.Equal(t, compression.Algorithm("lz4"), cfg.Compression.Algorithm)
	assert.Equal(t, int64(64), cfg.Engine.MaxBatchRows)
	assert.Equal(t, 0.25, cfg.Tracing.SamplingRate)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Compression.PreserveDictionary)
}

func TestLoadWithViperWithoutFile(t *testing.T) {
	t.Setenv("QUIVER_SNIFFER_STRICT", "true")

	cfg, err := LoadWithViper("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.Sniffer.Strict)
	assert.Equal(t, NewConfig().Engine, cfg.Engine)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A_VAR", "x")
	assert.Equal(t, "x-x-", substituteEnvVars("${A_VAR}-${A_VAR}-${UNSET_VAR_FOR_TEST}"))
	assert.Equal(t, "${open", substituteEnvVars("${open"))
}
