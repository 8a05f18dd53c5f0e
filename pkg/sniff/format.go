package sniff

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// Format is a columnar container format quiver can decode.
type Format int

const (
	// Unknown is the zero value and never returned alongside a nil error
	Unknown Format = iota
	// ArrowIpcFile is the Arrow IPC random-access file format
	ArrowIpcFile
	// ArrowIpcStream is the Arrow IPC streaming format
	ArrowIpcStream
	// Feather covers Feather v1 ("FEA1") and Feather v2 (an IPC file)
	Feather
	// Parquet is Apache Parquet
	Parquet
)

var formatNames = map[Format]string{
	Unknown:        "unknown",
	ArrowIpcFile:   "arrow_ipc_file",
	ArrowIpcStream: "arrow_ipc_stream",
	Feather:        "feather",
	Parquet:        "parquet",
}

// String returns the snake_case name used in logs, metrics and the CLI.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// DisplayName returns the human readable name used in diagnostics.
func (f Format) DisplayName() string {
	switch f {
	case ArrowIpcFile:
		return "Arrow IPC file"
	case ArrowIpcStream:
		return "Arrow IPC stream"
	case Feather:
		return "Feather"
	case Parquet:
		return "Apache Parquet"
	default:
		return "unknown"
	}
}

// Supported lists the decodable formats in a stable order.
func Supported() []Format {
	return []Format{ArrowIpcFile, ArrowIpcStream, Feather, Parquet}
}

// ParseFormat accepts the String form plus a few common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arrow_ipc_file", "arrow", "ipc", "file", "arrow_file":
		return ArrowIpcFile, nil
	case "arrow_ipc_stream", "stream", "arrow_stream":
		return ArrowIpcStream, nil
	case "feather", "feather_v2":
		return Feather, nil
	case "parquet":
		return Parquet, nil
	}
	return Unknown, errors.Validation("unknown format %q (expected one of arrow_ipc_file, arrow_ipc_stream, feather, parquet)", s).
		WithDetail("format", s)
}
