package bridge

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/internal/arrowutil"
	"github.com/ajitpratap0/quiver/pkg/engine"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/handle"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/pool"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// Predicate decides whether Filter keeps a row. A returned error skips the
// row.
type Predicate func(row RowView) (bool, error)

var filterMasks = pool.NewBools(4096)

// Filter calls pred once per row and registers the rows it kept. The table
// is retained before the first call and no lock is held while pred runs. A
// panic in pred aborts the filter with a VALIDATION error and registers
// nothing.
func (s *Store) Filter(ctx context.Context, h handle.Handle, pred Predicate) (handle.Handle, error) {
	if pred == nil {
		return handle.Invalid, errors.Validation("Filter requires a predicate")
	}

	res, err := s.tables.Lookup(h)
	if err != nil {
		return handle.Invalid, err
	}
	defer res.Release()
	t := res.Value()

	mask, token := filterMasks.Take(int(t.NumRows()))
	defer filterMasks.Put(token)
	skipped := 0
	for i := range mask {
		keep, panicked, err := callPredicate(pred, RowView{s: s, h: h, row: int64(i)})
		if panicked {
			return handle.Invalid, err
		}
		if err != nil {
			skipped++
			s.logger.Debug("filter predicate failed; row skipped",
				zap.Uint32("handle", uint32(h)), zap.Int("row", i), zap.Error(err))
			continue
		}
		mask[i] = keep
	}
	if skipped > 0 {
		s.logger.Debug("filter finished with skipped rows", zap.Int("skipped", skipped))
	}

	out, err := s.filterTable(ctx, t, mask)
	if err != nil {
		return handle.Invalid, err
	}
	return s.insertTable(out)
}

func callPredicate(pred Predicate, row RowView) (keep, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = errors.Validation("filter predicate panicked at row %d: %v", row.Index(), r).
				WithDetail("row", row.Index())
		}
	}()
	keep, err = pred(row)
	return keep, false, err
}

// FilterMask registers the rows of h whose mask entry is true. The mask
// length must equal the row count.
func (s *Store) FilterMask(ctx context.Context, h handle.Handle, mask []bool) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		return s.filterTable(ctx, t, mask)
	})
}

// filterTable filters batch by batch, so the result has as many batches as
// t.
func (s *Store) filterTable(ctx context.Context, t *table.Table, mask []bool) (*table.Table, error) {
	if int64(len(mask)) != t.NumRows() {
		return nil, errors.Validation("Filter mask length %d does not match row count %d", len(mask), t.NumRows())
	}

	parts := make([]arrow.Record, 0, t.NumBatches())
	defer func() { releaseRecords(parts) }()

	var offset int64
	for _, rec := range t.Batches() {
		n := rec.NumRows()
		seg := mask[offset : offset+n]
		offset += n

		cols := make([]arrow.Array, rec.NumCols())
		for i := range cols {
			out, err := s.engine.Filter(ctx, rec.Column(i), seg)
			if err != nil {
				releaseArrays(cols)
				return nil, err
			}
			cols[i] = out
		}
		parts = append(parts, array.NewRecord(t.Schema(), cols, countTrue(seg)))
		releaseArrays(cols)
	}
	return table.New(t.Schema(), parts, t.Metadata())
}

// Take registers the rows at indices, in that order, as a single-batch
// table. Every index must be below the row count.
func (s *Store) Take(ctx context.Context, h handle.Handle, indices []int64) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		return s.takeTable(ctx, t, indices)
	})
}

func (s *Store) takeTable(ctx context.Context, t *table.Table, indices []int64) (*table.Table, error) {
	for pos, idx := range indices {
		if idx < 0 || idx >= t.NumRows() {
			return nil, errors.OutOfBounds("Take index %d at position %d is out of bounds. Table has %d rows",
				idx, pos, t.NumRows()).WithDetail("row_count", t.NumRows())
		}
	}

	cols := make([]arrow.Array, t.NumColumns())
	defer func() { releaseArrays(cols) }()
	for i := range cols {
		full, err := s.concatColumn(t, i)
		if err != nil {
			return nil, err
		}
		cols[i], err = s.engine.Take(ctx, full, indices)
		full.Release()
		if err != nil {
			return nil, err
		}
	}

	rec := array.NewRecord(t.Schema(), cols, int64(len(indices)))
	defer rec.Release()
	return table.FromRecord(rec, t.Metadata())
}

// SortBy registers h sorted by the named column. The sort is stable and
// puts nulls last; the result is a single batch.
func (s *Store) SortBy(ctx context.Context, h handle.Handle, column string, descending bool) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		col, err := t.ColumnIndex(column)
		if err != nil {
			return nil, err
		}
		key, err := s.concatColumn(t, col)
		if err != nil {
			return nil, err
		}
		defer key.Release()

		indices, err := s.engine.SortIndices(ctx, key, descending)
		if err != nil {
			return nil, err
		}
		return s.takeTable(ctx, t, indices)
	})
}

// CastColumn registers column col of h converted to the named type as a
// one-column table. The column keeps its name.
func (s *Store) CastColumn(ctx context.Context, h handle.Handle, col int, typeName string) (handle.Handle, error) {
	to, err := ParseDataType(typeName)
	if err != nil {
		return handle.Invalid, err
	}
	return s.columnKernel(h, col, func(arr arrow.Array) (arrow.Array, error) {
		return s.engine.Cast(ctx, arr, to)
	})
}

// SortColumn registers the sorted values of column col as a one-column
// table.
func (s *Store) SortColumn(ctx context.Context, h handle.Handle, col int, descending bool) (handle.Handle, error) {
	return s.columnKernel(h, col, func(arr arrow.Array) (arrow.Array, error) {
		return s.engine.Sort(ctx, arr, descending)
	})
}

// TakeColumn registers the cells of column col at indices as a one-column
// table.
func (s *Store) TakeColumn(ctx context.Context, h handle.Handle, col int, indices []int64) (handle.Handle, error) {
	return s.columnKernel(h, col, func(arr arrow.Array) (arrow.Array, error) {
		return s.engine.Take(ctx, arr, indices)
	})
}

// FilterColumn registers the cells of column col whose mask entry is true
// as a one-column table.
func (s *Store) FilterColumn(ctx context.Context, h handle.Handle, col int, mask []bool) (handle.Handle, error) {
	return s.columnKernel(h, col, func(arr arrow.Array) (arrow.Array, error) {
		return s.engine.Filter(ctx, arr, mask)
	})
}

// Aggregate reduces column col with the named aggregate (sum, mean, min,
// max, count, count_distinct).
func (s *Store) Aggregate(ctx context.Context, h handle.Handle, col int, kind string) (Value, error) {
	ctx = logger.WithHandle(logger.WithOperation(ctx, "aggregate"), uint32(h))
	log := logger.WithContext(ctx, s.logger).With(zap.Int("column", col), zap.String("aggregate", kind))

	k, err := engine.ParseAggregate(kind)
	if err != nil {
		log.Debug("aggregate rejected", zap.Error(err))
		return Value{}, err
	}

	var v Value
	err = s.withTable(h, func(t *table.Table) error {
		if err := t.CheckColumn(col); err != nil {
			return err
		}
		arr, err := s.concatColumn(t, col)
		if err != nil {
			return err
		}
		defer arr.Release()

		out, err := s.engine.Aggregate(ctx, arr, k)
		if err != nil {
			return err
		}
		defer out.Release()

		if x, null := arrowutil.Value(out, 0); null {
			v = Value{Kind: Null}
		} else {
			v = Value{Kind: Present, V: x}
		}
		return nil
	})
	if err != nil {
		log.Debug("aggregate failed", zap.Error(err))
		return Value{}, err
	}
	log.Debug("aggregate computed", zap.Stringer("result", v))
	return v, nil
}

// columnKernel runs fn over the whole of column col and registers the
// result as a one-column table named after the source column.
func (s *Store) columnKernel(h handle.Handle, col int, fn func(arrow.Array) (arrow.Array, error)) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		if err := t.CheckColumn(col); err != nil {
			return nil, err
		}
		arr, err := s.concatColumn(t, col)
		if err != nil {
			return nil, err
		}
		defer arr.Release()

		out, err := fn(arr)
		if err != nil {
			return nil, err
		}
		defer out.Release()
		return oneColumnTable(t.Schema().Field(col).Name, out, t.Metadata())
	})
}

// concatColumn returns column col as one array. The caller releases it.
func (s *Store) concatColumn(t *table.Table, col int) (arrow.Array, error) {
	batches := t.Batches()
	switch len(batches) {
	case 0:
		b := array.NewBuilder(s.mem, t.Schema().Field(col).Type)
		defer b.Release()
		return b.NewArray(), nil
	case 1:
		arr := batches[0].Column(col)
		arr.Retain()
		return arr, nil
	}

	chunks := make([]arrow.Array, len(batches))
	for i, rec := range batches {
		chunks[i] = rec.Column(col)
	}
	out, err := array.Concatenate(chunks, s.mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTypeMismatch, "failed to concatenate column")
	}
	return out, nil
}

// oneColumnTable wraps arr in a nullable field called name.
func oneColumnTable(name string, arr arrow.Array, md map[string]string) (*table.Table, error) {
	schema := arrow.NewSchema([]arrow.Field{{Name: name, Type: arr.DataType(), Nullable: true}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()
	return table.FromRecord(rec, md)
}

func countTrue(mask []bool) int64 {
	var n int64
	for _, keep := range mask {
		if keep {
			n++
		}
	}
	return n
}

func releaseArrays(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}

func releaseRecords(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}
