// Package compression negotiates the buffer compression used when tables are
// encoded, and provides the codecs behind that negotiation.
//
// # Overview
//
// Three algorithms are recognized: NONE, LZ4 (frame format) and ZSTD. LZ4
// and ZSTD are compiled in by default and can each be left out of a build
// with the quiver_nolz4 and quiver_nozstd tags. Because of that, availability
// is always queried at run time (Available, or an engine's
// SupportedCompressions) and never assumed.
//
// # Negotiation
//
// Config is the user-facing selection. ToEngineOptions checks it against the
// capabilities reported by an engine and returns WriteOptions, or a
// validation error naming the algorithms that are available:
//
//	cfg := compression.Config{Enabled: true, Algorithm: compression.ZSTD}
//	opts, err := cfg.ToEngineOptions(eng)
//
// A requested algorithm that is missing is an error; the selection is never
// silently downgraded to NONE.
//
// # Codecs
//
// NewCompressor returns a Compressor for any available algorithm. The engine
// uses them to estimate what a codec would save on an encoded table and
// DetectFrame recognizes their frame signatures inside a buffer.
package compression

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "NONE"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "LZ4"
	// ZSTD represents zstandard compression
	ZSTD Algorithm = "ZSTD"
)

// ParseAlgorithm accepts the canonical names plus common spellings
// ("lz4_frame", "zstandard", "" for none), case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE", "UNCOMPRESSED":
		return None, nil
	case "LZ4", "LZ4_FRAME":
		return LZ4, nil
	case "ZSTD", "ZSTANDARD":
		return ZSTD, nil
	}
	return "", fmt.Errorf("unknown compression algorithm %q", s)
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	// The input data is not modified.
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

type codec struct {
	magic []byte
	newFn func(Level) (Compressor, error)
}

var (
	codecsMu sync.RWMutex
	codecs   = map[Algorithm]codec{
		None: {newFn: func(Level) (Compressor, error) { return noneCompressor{}, nil }},
	}
)

// register is called from the init functions of the build-tagged codec files.
func register(alg Algorithm, magic []byte, newFn func(Level) (Compressor, error)) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[alg] = codec{magic: magic, newFn: newFn}
}

// Available returns the algorithms compiled into this build, NONE first.
func Available() []Algorithm {
	codecsMu.RLock()
	out := make([]Algorithm, 0, len(codecs))
	for alg := range codecs {
		out = append(out, alg)
	}
	codecsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i] == None || out[j] == None {
			return out[i] == None
		}
		return out[i] < out[j]
	})
	return out
}

// IsAvailable reports whether alg is compiled into this build.
func IsAvailable(alg Algorithm) bool {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	_, ok := codecs[alg]
	return ok
}

// NewCompressor creates a compressor for alg at the given level.
func NewCompressor(alg Algorithm, level Level) (Compressor, error) {
	codecsMu.RLock()
	c, ok := codecs[alg]
	codecsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("compression algorithm %s is not available in this build", alg)
	}
	return c.newFn(level)
}

// DetectFrame scans data for the frame signature of an available codec and
// returns the first one found.
func DetectFrame(data []byte) (Algorithm, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()

	best, bestAt := Algorithm(""), -1
	for alg, c := range codecs {
		if len(c.magic) == 0 {
			continue
		}
		if at := bytes.Index(data, c.magic); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = alg, at
		}
	}
	return best, bestAt >= 0
}

// None compressor (no compression)
type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCompressor) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCompressor) Algorithm() Algorithm { return None }

func (noneCompressor) Level() Level { return Default }
