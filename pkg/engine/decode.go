package engine

import (
	"bytes"
	"context"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/observability"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// arrowSchemaKey is the Parquet key-value entry pqarrow stores the
// serialized Arrow schema under. It is codec plumbing, not table metadata.
const arrowSchemaKey = "ARROW:schema"

// Decode reads data as format into a new table. Table metadata comes from
// the Arrow schema metadata (IPC, Feather) or the Parquet key-value
// metadata.
func (e *ArrowEngine) Decode(ctx context.Context, data []byte, format sniff.Format) (t *table.Table, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "engine.decode",
		attribute.String("format", format.String()),
		attribute.Int("bytes", len(data)))
	defer func() {
		if t != nil {
			span.SetAttribute("rows", t.NumRows())
			span.SetAttribute("batches", t.NumBatches())
		}
		span.End(err)
		e.observe("decode", format, start, err)
	}()
	defer func() {
		if r := recover(); r != nil {
			if t != nil {
				t.Release()
			}
			t, err = nil, decodePanic(r, format, len(data))
			e.logger.Warn("decoder panicked on corrupt input",
				zap.Stringer("format", format), zap.Int("bytes", len(data)), zap.Error(err))
		}
	}()
	e.countBytes("in", format, len(data))

	mem := newBoundedAllocator(e.mem, e.decodeAllocFloor, len(data))
	switch format {
	case sniff.ArrowIpcFile:
		t, err = e.decodeIPCFile(mem, data)
	case sniff.Feather:
		if bytes.HasPrefix(data, []byte("FEA1")) {
			return nil, errors.New(errors.CodeNotImplemented,
				"Feather v1 files are not supported. Re-export the file as Feather v2 (for example pyarrow.feather.write_feather(df, path, version=2))")
		}
		t, err = e.decodeIPCFile(mem, data)
	case sniff.ArrowIpcStream:
		t, err = e.decodeIPCStream(mem, data)
	case sniff.Parquet:
		t, err = e.decodeParquet(ctx, mem, data)
	default:
		return nil, errors.Newf(errors.CodeValidation, "cannot decode format %s", format)
	}
	if err != nil {
		e.logger.Debug("decode failed", zap.Stringer("format", format), zap.Error(err))
		return nil, err
	}

	e.logger.Debug("decoded table",
		zap.Stringer("format", format),
		zap.Int("bytes", len(data)),
		zap.Int64("rows", t.NumRows()),
		zap.Int("batches", t.NumBatches()))
	return t, nil
}

func (e *ArrowEngine) decodeIPCFile(mem memory.Allocator, data []byte) (*table.Table, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to open Arrow IPC file")
	}
	defer r.Close()

	recs := make([]arrow.Record, 0, r.NumRecords())
	defer func() { releaseRecords(recs) }()

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.RecordAt(i)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeIO, "failed to read record batch %d", i)
		}
		recs = append(recs, rec)
	}

	schema := r.Schema()
	return table.New(schema, recs, metadataMap(schema.Metadata()))
}

func (e *ArrowEngine) decodeIPCStream(mem memory.Allocator, data []byte) (*table.Table, error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to open Arrow IPC stream")
	}
	defer r.Release()

	var recs []arrow.Record
	defer func() { releaseRecords(recs) }()

	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "failed to read record batch %d", len(recs))
	}

	schema := r.Schema()
	return table.New(schema, recs, metadataMap(schema.Metadata()))
}

// decodeParquet maps each row group to one record batch, so a file written
// by Encode decodes back to the same batch layout.
func (e *ArrowEngine) decodeParquet(ctx context.Context, mem memory.Allocator, data []byte) (*table.Table, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data),
		file.WithReadProps(parquet.NewReaderProperties(mem)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to open Parquet file")
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to read Parquet schema")
	}
	read, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to convert Parquet schema to Arrow")
	}

	md := make(map[string]string)
	if kv := pf.MetaData().KeyValueMetadata(); kv != nil {
		keys, values := kv.Keys(), kv.Values()
		for i, k := range keys {
			if k == arrowSchemaKey {
				continue
			}
			md[k] = values[i]
		}
	}
	schemaMeta := arrow.MetadataFrom(md)
	schema := arrow.NewSchema(read.Fields(), &schemaMeta)

	var recs []arrow.Record
	defer func() { releaseRecords(recs) }()

	for i := 0; i < pf.NumRowGroups(); i++ {
		rec, err := readRowGroup(ctx, mem, fr, schema, i)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return table.New(schema, recs, md)
}

func readRowGroup(ctx context.Context, mem memory.Allocator, fr *pqarrow.FileReader, schema *arrow.Schema, i int) (arrow.Record, error) {
	tbl, err := fr.RowGroup(i).ReadTable(ctx, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "failed to read row group %d", i)
	}
	defer tbl.Release()

	if tbl.NumRows() == 0 {
		b := array.NewRecordBuilder(mem, schema)
		defer b.Release()
		return b.NewRecord(), nil
	}

	tr := array.NewTableReader(tbl, math.MaxInt64)
	defer tr.Release()

	var parts []arrow.Record
	for tr.Next() {
		rec := tr.Record()
		rec.Retain()
		parts = append(parts, rec)
	}
	if err := tr.Err(); err != nil {
		releaseRecords(parts)
		return nil, errors.Wrapf(err, errors.CodeIO, "failed to assemble row group %d", i)
	}

	rec, err := concatRecords(mem, schema, parts)
	releaseRecords(parts)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeSchemaMismatch, "failed to assemble row group %d", i)
	}
	return rec, nil
}

// concatRecords joins records column by column into one record carrying
// schema.
func concatRecords(mem memory.Allocator, schema *arrow.Schema, parts []arrow.Record) (arrow.Record, error) {
	if len(parts) == 1 {
		return array.NewRecord(schema, parts[0].Columns(), parts[0].NumRows()), nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	var rows int64
	for _, p := range parts {
		rows += p.NumRows()
	}
	for i := range cols {
		chunks := make([]arrow.Array, len(parts))
		for j, p := range parts {
			chunks[j] = p.Column(i)
		}
		col, err := array.Concatenate(chunks, mem)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return array.NewRecord(schema, cols, rows), nil
}

func metadataMap(md arrow.Metadata) map[string]string {
	out := make(map[string]string, md.Len())
	for i, k := range md.Keys() {
		out[k] = md.Values()[i]
	}
	return out
}

func releaseRecords(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}
