package engine

import (
	"context"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/compute/exec"

	"github.com/ajitpratap0/quiver/internal/arrowutil"
	"github.com/ajitpratap0/quiver/pkg/errors"
)

func (e *ArrowEngine) kernelCtx(ctx context.Context) context.Context {
	return exec.WithAllocator(ctx, e.mem)
}

// Cast converts arr to type to. Lossy conversions (overflow, truncation)
// fail with TYPE_MISMATCH.
func (e *ArrowEngine) Cast(ctx context.Context, arr arrow.Array, to arrow.DataType) (out arrow.Array, err error) {
	defer e.track("cast", time.Now(), &err)

	if to == nil {
		return nil, errors.Validation("cast target type cannot be nil")
	}
	if arrow.TypeEqual(arr.DataType(), to) {
		arr.Retain()
		return arr, nil
	}
	out, err = compute.CastArray(e.kernelCtx(ctx), arr, compute.SafeCastOptions(to))
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeTypeMismatch, "cannot cast %s to %s", arr.DataType(), to)
	}
	return out, nil
}

// Filter keeps the cells whose mask entry is true. The mask must be as long
// as arr.
func (e *ArrowEngine) Filter(ctx context.Context, arr arrow.Array, mask []bool) (out arrow.Array, err error) {
	defer e.track("filter", time.Now(), &err)

	if len(mask) != arr.Len() {
		return nil, errors.Validation("Filter mask length %d does not match array length %d", len(mask), arr.Len())
	}

	b := array.NewBooleanBuilder(e.mem)
	defer b.Release()
	b.AppendValues(mask, nil)
	m := b.NewArray()
	defer m.Release()

	out, err = compute.FilterArray(e.kernelCtx(ctx), arr, m, *compute.DefaultFilterOptions())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTypeMismatch, "filter kernel failed")
	}
	return out, nil
}

// Take gathers arr[indices[0]], arr[indices[1]], ... Every index must lie in
// [0, arr.Len()).
func (e *ArrowEngine) Take(ctx context.Context, arr arrow.Array, indices []int64) (out arrow.Array, err error) {
	defer e.track("take", time.Now(), &err)

	n := int64(arr.Len())
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.OutOfBounds("Take index %d at position %d is out of bounds. Array has %d rows", idx, i, n)
		}
	}

	b := array.NewInt64Builder(e.mem)
	defer b.Release()
	b.AppendValues(indices, nil)
	idx := b.NewArray()
	defer idx.Release()

	out, err = compute.TakeArray(e.kernelCtx(ctx), arr, idx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTypeMismatch, "take kernel failed")
	}
	return out, nil
}

// SortIndices returns the permutation that sorts arr. The sort is stable and
// nulls go last in both directions.
func (e *ArrowEngine) SortIndices(_ context.Context, arr arrow.Array, descending bool) (idx []int64, err error) {
	defer e.track("sort", time.Now(), &err)

	if arr.DataType().ID() == arrow.NULL {
		idx = make([]int64, arr.Len())
		for i := range idx {
			idx[i] = int64(i)
		}
		return idx, nil
	}
	if !sortable(arr.DataType()) {
		return nil, errors.Newf(errors.CodeNotImplemented, "sorting %s columns is not supported", arr.DataType())
	}

	idx = make([]int64, arr.Len())
	for i := range idx {
		idx[i] = int64(i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := int(idx[a]), int(idx[b])
		ni, nj := arrowutil.IsNull(arr, i), arrowutil.IsNull(arr, j)
		switch {
		case ni || nj:
			return !ni && nj
		case descending:
			return arrowutil.Compare(arr, i, j) > 0
		default:
			return arrowutil.Compare(arr, i, j) < 0
		}
	})
	return idx, nil
}

// Sort returns a sorted copy of arr.
func (e *ArrowEngine) Sort(ctx context.Context, arr arrow.Array, descending bool) (arrow.Array, error) {
	idx, err := e.SortIndices(ctx, arr, descending)
	if err != nil {
		return nil, err
	}
	return e.Take(ctx, arr, idx)
}

func sortable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL, arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY,
		arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return true
	}
	return arrowutil.IsNumeric(dt)
}
