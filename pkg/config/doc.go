// Package config provides quiver's configuration: one Config structure with
// a section per concern, YAML loading with ${VAR} substitution, and a
// viper-based loader that layers QUIVER_* environment variables on top.
//
// The sections are:
//   - Logging: level, encoding, development mode
//   - Engine: allocator, Parquet codec and row group length, IPC batch
//     splitting
//   - Compression: the IPC body codec used when writing
//   - Sniffer: strict mode
//   - Metrics: Prometheus namespace and listen address
//   - Tracing: OpenTelemetry exporter and sampling
//
// Example YAML:
//
//	logging:
//	  level: debug
//	compression:
//	  enabled: true
//	  algorithm: ${QUIVER_CODEC}
//	engine:
//	  row_group_length: 65536
//
// Example usage:
//
//	cfg, err := config.LoadWithViper("quiver.yaml", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Compression.ToEngineOptions(engine)
package config
