// Package quiver exposes Apache Arrow tables to a host runtime through
// opaque handles.
//
// Quiver decodes Arrow IPC (file and stream), Feather v2 and Parquet
// buffers into in-memory tables, lets the host read them through
// lightweight views, runs compute kernels over them and writes them back
// out with optional LZ4 or ZSTD body compression. Every object the host
// holds is a numeric handle into a registry; the data itself never crosses
// the boundary until the host asks for a cell, a row or an encoded buffer.
//
// # Quick Start
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/quiver/pkg/bridge"
//	    "github.com/ajitpratap0/quiver/pkg/compression"
//	    "github.com/ajitpratap0/quiver/pkg/sniff"
//	)
//
//	store := bridge.NewStore()
//	defer store.ClearAll()
//
//	h, err := store.Decode(ctx, data) // format is detected from magic bytes
//	if err != nil {
//	    return err
//	}
//
//	view, _ := store.Table(h)
//	row, _ := view.Row(0)
//	fields, _ := row.ToMap()
//
//	sorted, _ := store.SortBy(ctx, h, "score", true)
//	out, _ := store.Write(ctx, sorted, sniff.Parquet, compression.WithZstd())
//
// # Key Packages
//
//	pkg/bridge         - Handle-based store: decode, views, compute, builders, write
//	pkg/engine         - arrow-go codecs and compute kernels
//	pkg/sniff          - Format detection from magic bytes and layout heuristics
//	pkg/compression    - LZ4 and ZSTD codecs and write-time selection
//	pkg/table          - Immutable multi-batch tables
//	pkg/handle         - Generic handle registry with reference counting
//	pkg/extension      - Extension type validators (geometry, demo)
//	pkg/config         - YAML, environment and flag configuration
//	pkg/errors         - Coded errors and their flat boundary form
//	pkg/logger         - Structured logging
//	pkg/metrics        - Prometheus collectors
//	pkg/observability  - OpenTelemetry tracing
//
// # Command Line
//
// cmd/quiver wraps the store for use from a shell:
//
//	quiver sniff data.arrow
//	quiver inspect data.parquet --rows 10
//	quiver convert data.arrow data.parquet --format parquet --compression zstd
//	quiver analyze data.arrow
//	quiver validate shapes.arrow --extension geo
//
// # Configuration
//
// Settings are read from a YAML file, then QUIVER_* environment variables,
// then command-line flags. ${VAR_NAME} references in the file are expanded.
package quiver
