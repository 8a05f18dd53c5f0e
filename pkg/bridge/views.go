package bridge

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/quiver/internal/arrowutil"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/handle"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// TableView is a table handle bound to its store.
type TableView struct {
	s *Store
	h handle.Handle
}

// Table returns a view of h after checking that it resolves.
func (s *Store) Table(h handle.Handle) (TableView, error) {
	if !s.tables.Contains(h) {
		return TableView{}, errors.InvalidHandle(string(handle.KindTable), uint32(h))
	}
	return TableView{s: s, h: h}, nil
}

// Column returns a view of column i of h.
func (s *Store) Column(h handle.Handle, i int) (ColumnView, error) {
	var cv ColumnView
	err := s.withTable(h, func(t *table.Table) error {
		if err := t.CheckColumn(i); err != nil {
			return err
		}
		cv = ColumnView{s: s, h: h, col: i}
		return nil
	})
	return cv, err
}

// ColumnByName returns a view of the first column called name.
func (s *Store) ColumnByName(h handle.Handle, name string) (ColumnView, error) {
	var cv ColumnView
	err := s.withTable(h, func(t *table.Table) error {
		i, err := t.ColumnIndex(name)
		if err != nil {
			return err
		}
		cv = ColumnView{s: s, h: h, col: i}
		return nil
	})
	return cv, err
}

// Row returns a view of row i of h.
func (s *Store) Row(h handle.Handle, i int64) (RowView, error) {
	var rv RowView
	err := s.withTable(h, func(t *table.Table) error {
		if i < 0 || i >= t.NumRows() {
			return errors.OutOfBounds("Row index %d is out of bounds. Table has %d rows", i, t.NumRows()).
				WithDetail("row_count", t.NumRows())
		}
		rv = RowView{s: s, h: h, row: i}
		return nil
	})
	return rv, err
}

// Handle returns the table handle.
func (v TableView) Handle() handle.Handle { return v.h }

// NumRows returns the row count.
func (v TableView) NumRows() (int64, error) {
	var n int64
	err := v.s.withTable(v.h, func(t *table.Table) error {
		n = t.NumRows()
		return nil
	})
	return n, err
}

// NumColumns returns the column count.
func (v TableView) NumColumns() (int, error) {
	var n int
	err := v.s.withTable(v.h, func(t *table.Table) error {
		n = t.NumColumns()
		return nil
	})
	return n, err
}

// NumBatches returns the batch count.
func (v TableView) NumBatches() (int, error) {
	var n int
	err := v.s.withTable(v.h, func(t *table.Table) error {
		n = t.NumBatches()
		return nil
	})
	return n, err
}

// Schema returns the table schema.
func (v TableView) Schema() (*arrow.Schema, error) {
	var sc *arrow.Schema
	err := v.s.withTable(v.h, func(t *table.Table) error {
		sc = t.Schema()
		return nil
	})
	return sc, err
}

// ColumnNames returns the column names in order.
func (v TableView) ColumnNames() ([]string, error) {
	var names []string
	err := v.s.withTable(v.h, func(t *table.Table) error {
		names = t.FieldNames()
		return nil
	})
	return names, err
}

// Column returns a view of column i.
func (v TableView) Column(i int) (ColumnView, error) { return v.s.Column(v.h, i) }

// ColumnByName returns a view of the named column.
func (v TableView) ColumnByName(name string) (ColumnView, error) { return v.s.ColumnByName(v.h, name) }

// Row returns a view of row i.
func (v TableView) Row(i int64) (RowView, error) { return v.s.Row(v.h, i) }

// ColumnView is one column of a table handle.
type ColumnView struct {
	s   *Store
	h   handle.Handle
	col int
}

// Handle returns the table handle.
func (c ColumnView) Handle() handle.Handle { return c.h }

// Index returns the column position.
func (c ColumnView) Index() int { return c.col }

func (c ColumnView) with(fn func(*table.Table) error) error {
	return c.s.withTable(c.h, func(t *table.Table) error {
		if err := t.CheckColumn(c.col); err != nil {
			return err
		}
		return fn(t)
	})
}

// Field returns the column field.
func (c ColumnView) Field() (arrow.Field, error) {
	var f arrow.Field
	err := c.with(func(t *table.Table) error {
		f = t.Schema().Field(c.col)
		return nil
	})
	return f, err
}

// Name returns the column name.
func (c ColumnView) Name() (string, error) {
	f, err := c.Field()
	return f.Name, err
}

// DataType returns the column type.
func (c ColumnView) DataType() (arrow.DataType, error) {
	f, err := c.Field()
	return f.Type, err
}

// Len returns the number of cells.
func (c ColumnView) Len() (int64, error) {
	var n int64
	err := c.with(func(t *table.Table) error {
		n = t.NumRows()
		return nil
	})
	return n, err
}

// NullCount returns the number of null cells.
func (c ColumnView) NullCount() (int64, error) {
	var n int64
	err := c.with(func(t *table.Table) error {
		for _, rec := range t.Batches() {
			n += int64(rec.Column(c.col).NullN())
		}
		return nil
	})
	return n, err
}

// Get returns cell i: Undefined past the end, Null for a null cell and
// Present otherwise.
func (c ColumnView) Get(i int64) (Value, error) {
	var v Value
	err := c.with(func(t *table.Table) error {
		v = cellValue(t, c.col, i)
		return nil
	})
	return v, err
}

// IsNull reports whether cell i is null.
func (c ColumnView) IsNull(i int64) (bool, error) {
	var null bool
	err := c.with(func(t *table.Table) error {
		b, local, ok := t.Locate(i)
		if !ok {
			return errors.OutOfBounds("Index %d is out of bounds. Column has %d values", i, t.NumRows())
		}
		null = arrowutil.IsNull(t.Batches()[b].Column(c.col), int(local))
		return nil
	})
	return null, err
}

// IsValid reports whether cell i is non-null.
func (c ColumnView) IsValid(i int64) (bool, error) {
	null, err := c.IsNull(i)
	return !null && err == nil, err
}

// Values returns every cell in row order.
func (c ColumnView) Values() ([]Value, error) {
	var out []Value
	err := c.with(func(t *table.Table) error {
		out = make([]Value, 0, t.NumRows())
		for _, rec := range t.Batches() {
			arr := rec.Column(c.col)
			for i := 0; i < arr.Len(); i++ {
				v, null := arrowutil.Value(arr, i)
				if null {
					out = append(out, Value{Kind: Null})
				} else {
					out = append(out, Value{Kind: Present, V: v})
				}
			}
		}
		return nil
	})
	return out, err
}

// Slice registers rows [offset, offset+length) of this column as a
// one-column table.
func (c ColumnView) Slice(offset, length int64) (handle.Handle, error) {
	return c.s.derive(c.h, func(t *table.Table) (*table.Table, error) {
		sel, err := t.SelectIndices([]int{c.col})
		if err != nil {
			return nil, err
		}
		defer sel.Release()
		return sel.Slice(offset, length)
	})
}

// ColumnStatistics summarizes a column. Min and Max are string renderings
// and are empty when the column has no non-null value.
type ColumnStatistics struct {
	Count         int64  `json:"count"`
	NullCount     int64  `json:"null_count"`
	Min           string `json:"min,omitempty"`
	Max           string `json:"max,omitempty"`
	DistinctCount int64  `json:"distinct_count"`
}

// Statistics computes null count, min, max and distinct count.
func (c ColumnView) Statistics() (ColumnStatistics, error) {
	var st ColumnStatistics
	err := c.with(func(t *table.Table) error {
		arr, err := c.s.concatColumn(t, c.col)
		if err != nil {
			return err
		}
		defer arr.Release()

		st.Count = int64(arr.Len())
		st.NullCount = int64(arr.NullN())

		seen := make(map[string]struct{})
		lo, hi := -1, -1
		for i := 0; i < arr.Len(); i++ {
			if arrowutil.IsNull(arr, i) {
				continue
			}
			seen[arr.ValueStr(i)] = struct{}{}
			if lo < 0 || arrowutil.Compare(arr, i, lo) < 0 {
				lo = i
			}
			if hi < 0 || arrowutil.Compare(arr, i, hi) > 0 {
				hi = i
			}
		}
		st.DistinctCount = int64(len(seen))
		if lo >= 0 {
			st.Min = arrowutil.Format(arr, lo)
			st.Max = arrowutil.Format(arr, hi)
		}
		return nil
	})
	return st, err
}

// RowView is one row of a table handle.
type RowView struct {
	s   *Store
	h   handle.Handle
	row int64
}

// Handle returns the table handle.
func (r RowView) Handle() handle.Handle { return r.h }

// Index returns the row position.
func (r RowView) Index() int64 { return r.row }

// Get returns the cell of the first column called name.
func (r RowView) Get(name string) (Value, error) {
	var v Value
	err := r.s.withTable(r.h, func(t *table.Table) error {
		i, err := t.ColumnIndex(name)
		if err != nil {
			return err
		}
		v = cellValue(t, i, r.row)
		return nil
	})
	return v, err
}

// GetAt returns the cell of column i, Undefined when i is past the last
// column.
func (r RowView) GetAt(i int) (Value, error) {
	var v Value
	err := r.s.withTable(r.h, func(t *table.Table) error {
		v = cellValue(t, i, r.row)
		return nil
	})
	return v, err
}

// Values returns the row's cells in column order.
func (r RowView) Values() ([]Value, error) {
	var out []Value
	err := r.s.withTable(r.h, func(t *table.Table) error {
		out = make([]Value, t.NumColumns())
		for i := range out {
			out[i] = cellValue(t, i, r.row)
		}
		return nil
	})
	return out, err
}

// ToMap returns the row keyed by column name. Nulls map to nil; with
// duplicate names the first column wins.
func (r RowView) ToMap() (map[string]any, error) {
	var out map[string]any
	err := r.s.withTable(r.h, func(t *table.Table) error {
		out = make(map[string]any, t.NumColumns())
		for i, f := range t.Schema().Fields() {
			if _, dup := out[f.Name]; dup {
				continue
			}
			out[f.Name] = cellValue(t, i, r.row).V
		}
		return nil
	})
	return out, err
}
