//go:build !quiver_nozstd

package compression

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdFrameMagic is the little-endian encoding of 0xFD2FB528.
var zstdFrameMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

func init() {
	register(ZSTD, zstdFrameMagic, func(level Level) (Compressor, error) {
		return newZstdCompressor(level), nil
	})
}

// Zstd compressor
type zstdCompressor struct {
	level       Level
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(level Level) *zstdCompressor {
	encLevel := mapZstdLevel(level)

	zc := &zstdCompressor{level: level}

	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
		return enc
	}

	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}

	return zc
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	return dec.DecodeAll(data, nil)
}

func (zc *zstdCompressor) Algorithm() Algorithm { return ZSTD }

func (zc *zstdCompressor) Level() Level { return zc.level }

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
