// Package engine defines DataEngine, the narrow seam between quiver's handle
// and view layer and the codecs and compute kernels that do real work on
// Arrow data, together with ArrowEngine, its arrow-go implementation.
//
// # Formats
//
// ArrowEngine decodes Arrow IPC files, Arrow IPC streams, Feather v2 (read
// as an IPC file) and Parquet. It encodes the same four. Feather v1 is
// recognized and rejected with NOT_IMPLEMENTED.
//
// # Kernels
//
// Cast, Filter and Take run arrow compute kernels. SortIndices is a stable
// sort with nulls last in either direction. Aggregate returns a length-1
// array.
//
// # Memory
//
// Every array and record the engine returns is owned by the caller and must
// be released. Tests should construct the engine with a checked allocator.
package engine

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// DataEngine is the codec and kernel surface the bridge depends on.
type DataEngine interface {
	compression.Capabilities

	Decode(ctx context.Context, data []byte, format sniff.Format) (*table.Table, error)
	Encode(ctx context.Context, t *table.Table, opts EncodeOptions) ([]byte, error)

	Cast(ctx context.Context, arr arrow.Array, to arrow.DataType) (arrow.Array, error)
	Filter(ctx context.Context, arr arrow.Array, mask []bool) (arrow.Array, error)
	Take(ctx context.Context, arr arrow.Array, indices []int64) (arrow.Array, error)
	SortIndices(ctx context.Context, arr arrow.Array, descending bool) ([]int64, error)
	Sort(ctx context.Context, arr arrow.Array, descending bool) (arrow.Array, error)
	Aggregate(ctx context.Context, arr arrow.Array, kind AggregateKind) (arrow.Array, error)
}

// EncodeOptions selects the output container and its compression.
type EncodeOptions struct {
	Format      sniff.Format
	Compression compression.WriteOptions
}

// Observer receives per-call engine measurements. pkg/metrics implements it.
type Observer interface {
	EngineOp(op, format string, d time.Duration, err error)
	EngineBytes(direction, format string, n int)
}

// Option configures an ArrowEngine.
type Option func(*ArrowEngine)

// WithAllocator sets the allocator used for decoded buffers and kernel
// outputs.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *ArrowEngine) { e.mem = mem }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *ArrowEngine) { e.logger = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(e *ArrowEngine) { e.observer = o }
}

// WithRowGroupLength caps the rows per Parquet row group on encode. Batches
// longer than n are split across row groups.
func WithRowGroupLength(n int64) Option {
	return func(e *ArrowEngine) { e.rowGroupLength = n }
}

// WithMaxBatchRows splits IPC batches longer than n rows on encode. Zero
// keeps batches as they are.
func WithMaxBatchRows(n int64) Option {
	return func(e *ArrowEngine) { e.maxBatchRows = n }
}

// WithParquetCodec sets the Parquet codec used when the write options ask
// for no compression. It lets a deployment compress Parquet column chunks
// while leaving IPC output uncompressed.
func WithParquetCodec(alg compression.Algorithm) Option {
	return func(e *ArrowEngine) { e.parquetCodec = alg }
}

// WithDecodeAllocLimit sets the smallest per-allocation ceiling applied
// while decoding. Larger inputs get a proportionally larger ceiling.
func WithDecodeAllocLimit(n int) Option {
	return func(e *ArrowEngine) { e.decodeAllocFloor = n }
}

// ArrowEngine implements DataEngine on arrow-go. It is safe for concurrent
// use; it keeps no per-call state.
type ArrowEngine struct {
	mem            memory.Allocator
	logger         *zap.Logger
	observer       Observer
	rowGroupLength int64
	maxBatchRows   int64
	parquetCodec   compression.Algorithm

	decodeAllocFloor int
}

var _ DataEngine = (*ArrowEngine)(nil)

// New creates an ArrowEngine.
func New(opts ...Option) *ArrowEngine {
	e := &ArrowEngine{
		mem:              memory.DefaultAllocator,
		parquetCodec:     compression.None,
		decodeAllocFloor: minDecodeAlloc,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrGlobal(e.logger).With(zap.String("component", "engine"))
	return e
}

// Allocator returns the engine allocator.
func (e *ArrowEngine) Allocator() memory.Allocator { return e.mem }

// SupportedCompressions lists the IPC body codecs compiled into this build.
// NONE is always first.
func (e *ArrowEngine) SupportedCompressions() []compression.Algorithm {
	return compression.Available()
}

func (e *ArrowEngine) observe(op string, format sniff.Format, start time.Time, err error) {
	if e.observer == nil {
		return
	}
	e.observer.EngineOp(op, format.String(), time.Since(start), err)
}

func (e *ArrowEngine) countBytes(direction string, format sniff.Format, n int) {
	if e.observer == nil {
		return
	}
	e.observer.EngineBytes(direction, format.String(), n)
}

// track is deferred by kernels; err points at the named result.
func (e *ArrowEngine) track(op string, start time.Time, err *error) {
	e.observe(op, sniff.Unknown, start, *err)
}
