package engine

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
	"github.com/ajitpratap0/quiver/pkg/testutil"
)

type CodecSuite struct {
	testutil.ArrowSuite
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) sample() *table.Table {
	schema, recs := testutil.SampleRecords(s.Mem())
	defer testutil.ReleaseAll(recs)
	tbl, err := table.New(schema, recs, map[string]string{"origin": "test"})
	s.Require().NoError(err)
	return tbl
}

// engine returns an engine on the suite's checked allocator, or on a plain
// Go allocator when checked is false.
func (s *CodecSuite) engine(checked bool, opts ...Option) *ArrowEngine {
	var mem memory.Allocator = memory.NewGoAllocator()
	if checked {
		mem = s.Mem()
	}
	return New(append([]Option{WithAllocator(mem), WithLogger(s.Logger())}, opts...)...)
}

func (s *CodecSuite) assertSameTable(want, got *table.Table) {
	s.Equal(want.NumRows(), got.NumRows())
	s.Equal(want.NumColumns(), got.NumColumns())
	s.Equal(want.NumBatches(), got.NumBatches())
	s.Equal(want.FieldNames(), got.FieldNames())
	s.Equal("test", got.Metadata()["origin"])

	for c := 0; c < want.NumColumns(); c++ {
		wc, err := want.Column(c)
		s.Require().NoError(err)
		gc, err := got.Column(c)
		s.Require().NoError(err)
		s.True(array.ChunkedEqual(wc, gc), "column %d", c)
		wc.Release()
		gc.Release()
	}
}

func (s *CodecSuite) TestRoundTripEveryFormat() {
	for _, format := range sniff.Supported() {
		s.Run(format.String(), func() {
			// Parquet runs on the Go allocator.
			e := s.engine(format != sniff.Parquet)
			src := s.sample()
			defer src.Release()

			data, err := e.Encode(s.Context(), src, EncodeOptions{Format: format})
			s.Require().NoError(err)

			detected, err := sniff.Sniff(data)
			s.Require().NoError(err)
			if format == sniff.Feather {
				s.Equal(sniff.ArrowIpcFile, detected)
			} else {
				s.Equal(format, detected)
			}

			got, err := e.Decode(s.Context(), data, format)
			s.Require().NoError(err)
			defer got.Release()
			s.assertSameTable(src, got)
		})
	}
}

func (s *CodecSuite) TestCompressedRoundTrip() {
	for _, alg := range compression.Available() {
		for _, format := range []sniff.Format{sniff.ArrowIpcFile, sniff.ArrowIpcStream, sniff.Parquet} {
			s.Run(string(alg)+"/"+format.String(), func() {
				e := s.engine(false)
				src := s.sample()
				defer src.Release()

				data, err := e.Encode(s.Context(), src, EncodeOptions{
					Format:      format,
					Compression: compression.WriteOptions{Codec: alg, PreserveDictionary: true},
				})
				s.Require().NoError(err)

				got, err := e.Decode(s.Context(), data, format)
				s.Require().NoError(err)
				defer got.Release()
				s.assertSameTable(src, got)
			})
		}
	}
}

func (s *CodecSuite) TestUnavailableCodecIsRejected() {
	e := s.engine(true)
	src := s.sample()
	defer src.Release()

	_, err := e.Encode(s.Context(), src, EncodeOptions{
		Format:      sniff.ArrowIpcFile,
		Compression: compression.WriteOptions{Codec: "BROTLI"},
	})
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.CodeValidation))
	s.Contains(err.Error(), `compression algorithm "BROTLI" is not available in this build`)
}

func (s *CodecSuite) TestMaxBatchRowsSplitsIPC() {
	e := s.engine(true, WithMaxBatchRows(2))
	src := s.sample()
	defer src.Release()

	data, err := e.Encode(s.Context(), src, EncodeOptions{Format: sniff.ArrowIpcStream})
	s.Require().NoError(err)

	got, err := e.Decode(s.Context(), data, sniff.ArrowIpcStream)
	s.Require().NoError(err)
	defer got.Release()
	s.Equal(3, got.NumBatches())
	s.Equal(int64(5), got.NumRows())
}

func (s *CodecSuite) TestRowGroupLength() {
	e := s.engine(false, WithRowGroupLength(2))
	src := s.sample()
	defer src.Release()

	data, err := e.Encode(s.Context(), src, EncodeOptions{Format: sniff.Parquet})
	s.Require().NoError(err)

	got, err := e.Decode(s.Context(), data, sniff.Parquet)
	s.Require().NoError(err)
	defer got.Release()
	s.Equal(3, got.NumBatches())
	s.Equal(int64(5), got.NumRows())
}

func (s *CodecSuite) TestEmptyTableRoundTrip() {
	e := s.engine(true)
	src, err := table.New(testutil.SampleSchema(), nil, nil)
	s.Require().NoError(err)
	defer src.Release()

	for _, format := range []sniff.Format{sniff.ArrowIpcFile, sniff.ArrowIpcStream} {
		data, err := e.Encode(s.Context(), src, EncodeOptions{Format: format})
		s.Require().NoError(err)
		got, err := e.Decode(s.Context(), data, format)
		s.Require().NoError(err)
		s.Equal(0, got.NumBatches())
		s.Equal(4, got.NumColumns())
		got.Release()
	}
}

func (s *CodecSuite) TestDecodeErrors() {
	e := s.engine(true)

	_, err := e.Decode(s.Context(), append([]byte("FEA1"), make([]byte, 32)...), sniff.Feather)
	s.True(errors.IsCode(err, errors.CodeNotImplemented))
	s.Contains(err.Error(), "Feather v2")

	_, err = e.Decode(s.Context(), []byte("ARROW1\x00\x00garbage-bytes-here"), sniff.ArrowIpcFile)
	s.True(errors.IsCode(err, errors.CodeIO), "got %v", err)

	_, err = e.Decode(s.Context(), []byte("PAR1xxxxPAR1"), sniff.Parquet)
	s.True(errors.IsCode(err, errors.CodeIO), "got %v", err)

	_, err = e.Decode(s.Context(), []byte("whatever"), sniff.Unknown)
	s.True(errors.IsCode(err, errors.CodeValidation))
}

func (s *CodecSuite) TestDecodeCorruptInput() {
	// Readers may abandon buffers when they fail mid-batch, so this runs on
	// the Go allocator.
	e := s.engine(false)
	src := s.sample()
	defer src.Release()

	for _, format := range []sniff.Format{sniff.ArrowIpcFile, sniff.ArrowIpcStream, sniff.Parquet} {
		data, err := e.Encode(s.Context(), src, EncodeOptions{Format: format})
		s.Require().NoError(err)

		cases := []struct {
			name  string
			input []byte
			cut   bool
		}{
			{name: "truncated third", input: data[:len(data)/3], cut: true},
			{name: "truncated half", input: data[:len(data)/2], cut: true},
			{name: "truncated two thirds", input: data[:2*len(data)/3], cut: true},
			{name: "header only", input: data[:8], cut: true},
		}
		for _, at := range []int{8, 12, 16, 24, 40, 64, len(data) / 4, len(data) / 2, len(data) - 16, len(data) - 10, len(data) - 5} {
			flipped := bytes.Clone(data)
			flipped[at] ^= 0xFF
			cases = append(cases, struct {
				name  string
				input []byte
				cut   bool
			}{name: fmt.Sprintf("flipped byte %d", at), input: flipped})
		}

		for _, tc := range cases {
			s.Run(format.String()+"/"+tc.name, func() {
				var (
					got *table.Table
					err error
				)
				s.NotPanics(func() { got, err = e.Decode(s.Context(), tc.input, format) })
				if err != nil {
					s.Nil(got)
					var coded *errors.Error
					s.Require().ErrorAs(err, &coded)
					s.NotEmpty(errors.ToBoundary(err).Message)
					return
				}
				defer got.Release()
				if tc.cut {
					// A stream cut on a message boundary reads as a shorter stream.
					s.Equal(sniff.ArrowIpcStream, format, "truncated %s decoded without error", format)
					s.Less(got.NumRows(), src.NumRows())
				}
			})
		}
	}
}

func (s *CodecSuite) TestDecodeAllocationCeiling() {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	bounded := newBoundedAllocator(mem, 1<<10, 4)
	s.Equal(4<<10, bounded.limit)

	buf := bounded.Allocate(4 << 10)
	buf = bounded.Reallocate(2<<10, buf)
	bounded.Free(buf)
	mem.AssertSize(s.T(), 0)

	s.PanicsWithValue(allocRefused{size: 148 << 40, limit: 4 << 10}, func() { bounded.Allocate(148 << 40) })
	s.PanicsWithValue(allocRefused{size: -1, limit: 4 << 10}, func() { bounded.Allocate(-1) })

	err := decodePanic(allocRefused{size: 148 << 40, limit: 4 << 10}, sniff.ArrowIpcStream, 4)
	s.Equal(errors.CodeMemory, err.Code)
	s.Contains(err.Error(), "Arrow IPC stream")
	s.Equal(148<<40, err.Details["requested"])

	err = decodePanic("index out of range [7] with length 3", sniff.Parquet, 4)
	s.Equal(errors.CodeIO, err.Code)
	s.Equal("parquet", err.Details["format"])
	s.Contains(err.Error(), "corrupt Apache Parquet input")

	// Large inputs scale the ceiling past the floor.
	s.Equal(1<<30, newBoundedAllocator(mem, 1<<10, 1<<20).limit)
}

func (s *CodecSuite) TestDecodeDetected() {
	e := s.engine(true)
	src := s.sample()
	defer src.Release()

	data, err := e.Encode(s.Context(), src, EncodeOptions{Format: sniff.ArrowIpcStream})
	s.Require().NoError(err)

	got, det, err := e.DecodeDetected(s.Context(), data)
	s.Require().NoError(err)
	defer got.Release()
	s.Equal(sniff.ArrowIpcStream, det.Format)
	s.Equal(src.NumRows(), got.NumRows())

	_, _, err = e.DecodeDetected(s.Context(), []byte("a,b\n1,2\n"))
	s.True(errors.IsCode(err, errors.CodeFormatDetection))
}

func (s *CodecSuite) TestAnalyzeCompression() {
	e := s.engine(false)
	src := s.sample()
	defer src.Release()

	plain, err := e.Encode(s.Context(), src, EncodeOptions{Format: sniff.ArrowIpcFile})
	s.Require().NoError(err)

	a, err := e.AnalyzeCompression(s.Context(), plain)
	s.Require().NoError(err)
	s.Equal(sniff.ArrowIpcFile, a.Format)
	s.Equal(2, a.Batches)
	s.Equal(4, a.Fields)
	s.Equal(int64(5), a.Rows)
	s.Equal(CodecNoneLikely, a.DetectedCodec)
	s.Len(a.Estimates, len(compression.Available())-1)

	if compression.IsAvailable(compression.ZSTD) {
		// Long enough columns that the IPC writer actually compresses.
		schema, recs := testutil.SampleRecords(s.Mem())
		defer testutil.ReleaseAll(recs)
		big, err := table.New(schema, repeat(recs, 50), nil)
		s.Require().NoError(err)
		defer big.Release()

		packed, err := e.Encode(s.Context(), big, EncodeOptions{
			Format:      sniff.ArrowIpcFile,
			Compression: compression.WriteOptions{Codec: compression.ZSTD},
		})
		s.Require().NoError(err)
		a, err = e.AnalyzeCompression(s.Context(), packed)
		s.Require().NoError(err)
		s.Equal("ZSTD", a.DetectedCodec)
	}
}

func (s *CodecSuite) TestSupportedCompressions() {
	e := s.engine(true)
	algs := e.SupportedCompressions()
	s.Require().NotEmpty(algs)
	s.Equal(compression.None, algs[0])

	opts, err := compression.WithLZ4().ToEngineOptions(e)
	if compression.IsAvailable(compression.LZ4) {
		s.Require().NoError(err)
		s.Equal(compression.LZ4, opts.Codec)
	} else {
		s.Error(err)
	}
}

func repeat[T any](items []T, n int) []T {
	out := make([]T, 0, len(items)*n)
	for i := 0; i < n; i++ {
		out = append(out, items...)
	}
	return out
}

func TestDetectCodec(t *testing.T) {
	cases := map[string]struct {
		data []byte
		want string
	}{
		"short":      {[]byte("abc"), CodecUnknownShort},
		"zero heavy": {make([]byte, 64), CodecNoneLikely},
		"dense":      {bytes.Repeat([]byte("xyzw"), 64), CodecUnknown},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := detectCodec(tc.data); got != tc.want {
				t.Fatalf("detectCodec = %q, want %q", got, tc.want)
			}
		})
	}
}
