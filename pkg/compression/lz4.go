//go:build !quiver_nolz4

package compression

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4FrameMagic is the little-endian encoding of 0x184D2204.
var lz4FrameMagic = []byte{0x04, 0x22, 0x4D, 0x18}

func init() {
	register(LZ4, lz4FrameMagic, func(level Level) (Compressor, error) {
		return newLZ4Compressor(level), nil
	})
}

// LZ4 compressor
type lz4Compressor struct {
	level            Level
	compressionLevel lz4.CompressionLevel
}

func newLZ4Compressor(level Level) *lz4Compressor {
	return &lz4Compressor{
		level:            level,
		compressionLevel: mapLZ4Level(level),
	}
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)

	// Apply compression level using the v4 API
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil { //nolint:gosec // input is caller-provided and bounded by it
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Algorithm() Algorithm { return LZ4 }

func (lc *lz4Compressor) Level() Level { return lc.level }

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}
