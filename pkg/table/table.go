// Package table defines the immutable in-memory table quiver hands out
// handles to: an ordered list of Arrow record batches sharing one schema,
// plus string metadata.
package table

import (
	"fmt"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// Table is an immutable list of record batches that share one schema.
// Derived tables (slices, projections) share column buffers with their
// source; every batch is reference counted by arrow, and the Table holds
// one reference per batch until Release.
type Table struct {
	schema   *arrow.Schema
	batches  []arrow.Record
	metadata map[string]string
	rows     int64

	releaseOnce sync.Once
}

// New builds a table from batches. Every batch schema must equal schema;
// the table retains each batch, so callers keep ownership of their own
// references.
func New(schema *arrow.Schema, batches []arrow.Record, metadata map[string]string) (*Table, error) {
	if schema == nil {
		return nil, errors.Validation("table schema cannot be nil")
	}

	var rows int64
	for i, b := range batches {
		if b == nil {
			return nil, errors.Validation("batch %d is nil", i)
		}
		if !b.Schema().Equal(schema) {
			return nil, errors.Newf(errors.CodeSchemaMismatch,
				"batch %d schema does not match table schema: got %s, want %s",
				i, fieldList(b.Schema()), fieldList(schema)).WithDetail("batch", i)
		}
		rows += b.NumRows()
	}

	for _, b := range batches {
		b.Retain()
	}

	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	return &Table{
		schema:   schema,
		batches:  append([]arrow.Record(nil), batches...),
		metadata: md,
		rows:     rows,
	}, nil
}

// FromRecord wraps a single batch.
func FromRecord(rec arrow.Record, metadata map[string]string) (*Table, error) {
	return New(rec.Schema(), []arrow.Record{rec}, metadata)
}

// Release drops the table's references to its batches. It is idempotent.
func (t *Table) Release() {
	t.releaseOnce.Do(func() {
		for _, b := range t.batches {
			b.Release()
		}
	})
}

// Schema returns the table schema.
func (t *Table) Schema() *arrow.Schema { return t.schema }

// NumRows returns the total row count across batches.
func (t *Table) NumRows() int64 { return t.rows }

// NumColumns returns the number of schema fields.
func (t *Table) NumColumns() int { return t.schema.NumFields() }

// NumBatches returns the number of record batches.
func (t *Table) NumBatches() int { return len(t.batches) }

// Batches returns the batches. The slice and records are shared; callers
// must not release them.
func (t *Table) Batches() []arrow.Record { return t.batches }

// Metadata returns a copy of the table metadata.
func (t *Table) Metadata() map[string]string {
	out := make(map[string]string, len(t.metadata))
	for k, v := range t.metadata {
		out[k] = v
	}
	return out
}

// FieldNames returns the column names in schema order.
func (t *Table) FieldNames() []string {
	names := make([]string, t.schema.NumFields())
	for i, f := range t.schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// ColumnIndex resolves a column name to its position. Duplicate names
// resolve to the first match.
func (t *Table) ColumnIndex(name string) (int, error) {
	if name == "" {
		return -1, errors.Validation("Column name cannot be empty")
	}
	idx := t.schema.FieldIndices(name)
	if len(idx) == 0 {
		return -1, errors.Validation("Column '%s' not found. Available columns: [%s]",
			name, strings.Join(t.FieldNames(), ", "))
	}
	return idx[0], nil
}

// CheckColumn validates a column position.
func (t *Table) CheckColumn(i int) error {
	if i < 0 || i >= t.NumColumns() {
		return errors.OutOfBounds("Column index %d is out of bounds. Table has %d columns", i, t.NumColumns())
	}
	return nil
}

// Column returns column i as a chunked array, one chunk per batch. The
// caller must release it.
func (t *Table) Column(i int) (*arrow.Chunked, error) {
	if err := t.CheckColumn(i); err != nil {
		return nil, err
	}
	chunks := make([]arrow.Array, len(t.batches))
	for b, rec := range t.batches {
		chunks[b] = rec.Column(i)
	}
	return arrow.NewChunked(t.schema.Field(i).Type, chunks), nil
}

// Locate maps a table row to its batch and the row inside that batch.
func (t *Table) Locate(row int64) (batch int, local int64, ok bool) {
	if row < 0 || row >= t.rows {
		return 0, 0, false
	}
	for i, b := range t.batches {
		n := b.NumRows()
		if row < n {
			return i, row, true
		}
		row -= n
	}
	return 0, 0, false
}

// Slice returns rows [offset, offset+length) as a new table. Batches are
// sliced in place, so no column buffer is copied.
func (t *Table) Slice(offset, length int64) (*Table, error) {
	if length <= 0 {
		return nil, errors.OutOfBounds("Slice length must be greater than 0").
			WithDetail("row_count", t.rows)
	}
	if offset < 0 || offset >= t.rows {
		return nil, errors.OutOfBounds("Slice offset %d is out of bounds. Table has %d rows", offset, t.rows).
			WithDetail("row_count", t.rows)
	}
	end := offset + length
	if end > t.rows || end < offset {
		return nil, errors.OutOfBounds("Slice range [%d..%d] exceeds table bounds. Table has %d rows", offset, end, t.rows).
			WithDetail("row_count", t.rows)
	}

	var (
		parts []arrow.Record
		start int64
	)
	for _, b := range t.batches {
		n := b.NumRows()
		lo, hi := max(offset, start), min(end, start+n)
		if lo < hi {
			parts = append(parts, b.NewSlice(lo-start, hi-start))
		}
		start += n
		if start >= end {
			break
		}
	}
	defer releaseAll(parts)

	return New(t.schema, parts, t.metadata)
}

// Select projects the named columns, in the given order, into a new table
// that shares the source column arrays.
func (t *Table) Select(names []string) (*Table, error) {
	if len(names) == 0 {
		return nil, errors.Validation("Select requires at least one column name")
	}

	indices := make([]int, len(names))
	for i, name := range names {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
	}
	return t.SelectIndices(indices)
}

// SelectIndices projects columns by position.
func (t *Table) SelectIndices(indices []int) (*Table, error) {
	fields := make([]arrow.Field, len(indices))
	for i, idx := range indices {
		if err := t.CheckColumn(idx); err != nil {
			return nil, err
		}
		fields[i] = t.schema.Field(idx)
	}

	md := t.schema.Metadata()
	schema := arrow.NewSchema(fields, &md)

	parts := make([]arrow.Record, len(t.batches))
	for b, rec := range t.batches {
		cols := make([]arrow.Array, len(indices))
		for i, idx := range indices {
			cols[i] = rec.Column(idx)
		}
		parts[b] = array.NewRecord(schema, cols, rec.NumRows())
	}
	defer releaseAll(parts)

	return New(schema, parts, t.metadata)
}

// WithMetadata returns a table sharing t's batches with metadata merged
// over t's own.
func (t *Table) WithMetadata(md map[string]string) (*Table, error) {
	merged := t.Metadata()
	for k, v := range md {
		merged[k] = v
	}
	return New(t.schema, t.batches, merged)
}

// FormatInfo returns a one-line description of the table shape.
func (t *Table) FormatInfo() string {
	return fmt.Sprintf("Schema: %d fields, %d batches, %d total rows", t.NumColumns(), t.NumBatches(), t.NumRows())
}

func fieldList(s *arrow.Schema) string {
	parts := make([]string, s.NumFields())
	for i, f := range s.Fields() {
		parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Type)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func releaseAll(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}
