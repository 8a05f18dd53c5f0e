package engine

import (
	"bytes"
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/observability"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// Encode writes t in opts.Format. Table metadata is merged over the schema
// metadata so it survives a round trip; for Parquet it lands in the file
// key-value metadata. A codec missing from this build is a VALIDATION
// error, never a silent fallback to uncompressed output.
func (e *ArrowEngine) Encode(ctx context.Context, t *table.Table, opts EncodeOptions) (out []byte, err error) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "engine.encode",
		attribute.String("format", opts.Format.String()),
		attribute.String("compression", string(opts.Compression.Codec)),
		attribute.Int64("rows", t.NumRows()))
	defer func() {
		span.SetAttribute("bytes", len(out))
		span.End(err)
		e.observe("encode", opts.Format, start, err)
	}()

	if err := e.checkCodec(opts.Compression.Codec); err != nil {
		return nil, err
	}

	schema := mergedSchema(t)

	switch opts.Format {
	case sniff.ArrowIpcFile, sniff.Feather:
		out, err = e.encodeIPC(t, schema, opts.Compression, true)
	case sniff.ArrowIpcStream:
		out, err = e.encodeIPC(t, schema, opts.Compression, false)
	case sniff.Parquet:
		out, err = e.encodeParquet(t, schema, opts.Compression)
	default:
		return nil, errors.Newf(errors.CodeValidation, "cannot encode format %s", opts.Format)
	}
	if err != nil {
		return nil, err
	}

	e.countBytes("out", opts.Format, len(out))
	e.logger.Debug("encoded table",
		zap.Stringer("format", opts.Format),
		zap.String("compression", string(opts.Compression.Codec)),
		zap.Int64("rows", t.NumRows()),
		zap.Int("bytes", len(out)))
	return out, nil
}

func (e *ArrowEngine) checkCodec(alg compression.Algorithm) error {
	if alg == "" || alg == compression.None {
		return nil
	}
	for _, a := range e.SupportedCompressions() {
		if a == alg {
			return nil
		}
	}
	return errors.Newf(errors.CodeValidation,
		"compression algorithm %q is not available in this build; supported: %v", alg, e.SupportedCompressions())
}

func mergedSchema(t *table.Table) *arrow.Schema {
	src := t.Schema()
	md := metadataMap(src.Metadata())
	for k, v := range t.Metadata() {
		md[k] = v
	}
	meta := arrow.MetadataFrom(md)
	return arrow.NewSchema(src.Fields(), &meta)
}

func (e *ArrowEngine) ipcOptions(schema *arrow.Schema, wo compression.WriteOptions) []ipc.Option {
	opts := []ipc.Option{
		ipc.WithSchema(schema),
		ipc.WithAllocator(e.mem),
		ipc.WithDictionaryDeltas(wo.PreserveDictionary),
	}
	switch wo.Codec {
	case compression.LZ4:
		opts = append(opts, ipc.WithLZ4())
	case compression.ZSTD:
		opts = append(opts, ipc.WithZstd())
	}
	return opts
}

type recordWriter interface {
	Write(arrow.Record) error
	Close() error
}

func (e *ArrowEngine) encodeIPC(t *table.Table, schema *arrow.Schema, wo compression.WriteOptions, fileFormat bool) ([]byte, error) {
	var (
		buf bytes.Buffer
		w   recordWriter
	)
	if fileFormat {
		fw, err := ipc.NewFileWriter(&buf, e.ipcOptions(schema, wo)...)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIO, "failed to create Arrow IPC file writer")
		}
		w = fw
	} else {
		w = ipc.NewWriter(&buf, e.ipcOptions(schema, wo)...)
	}

	for i, rec := range t.Batches() {
		if err := e.writeChunked(w, rec); err != nil {
			w.Close()
			return nil, errors.Wrapf(err, errors.CodeIO, "failed to write record batch %d", i)
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to finish Arrow IPC output")
	}
	return buf.Bytes(), nil
}

// writeChunked writes rec, split into slices of at most maxBatchRows rows
// when that limit is set.
func (e *ArrowEngine) writeChunked(w recordWriter, rec arrow.Record) error {
	n := rec.NumRows()
	if e.maxBatchRows <= 0 || n <= e.maxBatchRows {
		return w.Write(rec)
	}
	for off := int64(0); off < n; off += e.maxBatchRows {
		part := rec.NewSlice(off, min(off+e.maxBatchRows, n))
		err := w.Write(part)
		part.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func parquetCodec(alg compression.Algorithm) compress.Compression {
	switch alg {
	case compression.LZ4:
		return compress.Codecs.Lz4Raw
	case compression.ZSTD:
		return compress.Codecs.Zstd
	default:
		return compress.Codecs.Uncompressed
	}
}

// encodeParquet writes one row group per batch (more when a batch exceeds
// the row group length).
func (e *ArrowEngine) encodeParquet(t *table.Table, schema *arrow.Schema, wo compression.WriteOptions) ([]byte, error) {
	codec := wo.Codec
	if codec == "" || codec == compression.None {
		codec = e.parquetCodec
	}
	if err := e.checkCodec(codec); err != nil {
		return nil, err
	}

	props := []parquet.WriterProperty{
		parquet.WithAllocator(e.mem),
		parquet.WithCompression(parquetCodec(codec)),
		parquet.WithDictionaryDefault(wo.PreserveDictionary),
	}
	if e.rowGroupLength > 0 {
		props = append(props, parquet.WithMaxRowGroupLength(e.rowGroupLength))
	}

	var buf bytes.Buffer
	w, err := pqarrow.NewFileWriter(schema, &buf,
		parquet.NewWriterProperties(props...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema(), pqarrow.WithAllocator(e.mem)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to create Parquet writer")
	}

	for i, rec := range t.Batches() {
		if err := w.Write(rec); err != nil {
			w.Close()
			return nil, errors.Wrapf(err, errors.CodeIO, "failed to write row group for batch %d", i)
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to finish Parquet file")
	}
	return buf.Bytes(), nil
}
