package engine

import (
	"context"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"

	"github.com/ajitpratap0/quiver/internal/arrowutil"
	"github.com/ajitpratap0/quiver/pkg/errors"
)

// AggregateKind names a reduction.
type AggregateKind string

// Supported aggregates.
const (
	AggSum           AggregateKind = "sum"
	AggMean          AggregateKind = "mean"
	AggMin           AggregateKind = "min"
	AggMax           AggregateKind = "max"
	AggCount         AggregateKind = "count"
	AggCountDistinct AggregateKind = "count_distinct"
)

// AggregateKinds lists every kind in a stable order.
func AggregateKinds() []AggregateKind {
	return []AggregateKind{AggSum, AggMean, AggMin, AggMax, AggCount, AggCountDistinct}
}

// ParseAggregate parses a kind name, ignoring case. "avg" is accepted for
// mean and "distinct" for count_distinct.
func ParseAggregate(s string) (AggregateKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum":
		return AggSum, nil
	case "mean", "avg":
		return AggMean, nil
	case "min":
		return AggMin, nil
	case "max":
		return AggMax, nil
	case "count":
		return AggCount, nil
	case "count_distinct", "distinct":
		return AggCountDistinct, nil
	}
	return "", errors.Validation("unknown aggregate %q (expected one of %v)", s, AggregateKinds())
}

// Aggregate reduces arr to a length-1 array. Nulls are ignored; an empty or
// all-null input yields a null result except for the counts, which yield 0.
//
//	sum:            int64 for integer input, float64 for float input
//	mean:           float64
//	min, max:       the input type
//	count:          int64 count of non-null cells
//	count_distinct: int64 count of distinct non-null values
func (e *ArrowEngine) Aggregate(ctx context.Context, arr arrow.Array, kind AggregateKind) (out arrow.Array, err error) {
	defer e.track("aggregate", time.Now(), &err)

	switch kind {
	case AggCount:
		return e.int64Scalar(int64(arr.Len()-arr.NullN()), true), nil
	case AggCountDistinct:
		seen := make(map[string]struct{})
		for i := 0; i < arr.Len(); i++ {
			if !arrowutil.IsNull(arr, i) {
				seen[arr.ValueStr(i)] = struct{}{}
			}
		}
		return e.int64Scalar(int64(len(seen)), true), nil
	case AggMin, AggMax:
		return e.extreme(ctx, arr, kind == AggMax)
	case AggSum, AggMean:
		if !arrowutil.IsNumeric(arr.DataType()) {
			return nil, errors.Newf(errors.CodeTypeMismatch, "%s requires a numeric column, got %s", kind, arr.DataType())
		}
		return e.sumOrMean(arr, kind), nil
	}
	return nil, errors.Validation("unknown aggregate %q (expected one of %v)", kind, AggregateKinds())
}

func (e *ArrowEngine) extreme(ctx context.Context, arr arrow.Array, wantMax bool) (arrow.Array, error) {
	if !sortable(arr.DataType()) {
		return nil, errors.Newf(errors.CodeTypeMismatch, "min/max is not supported for %s columns", arr.DataType())
	}

	best := -1
	for i := 0; i < arr.Len(); i++ {
		if arrowutil.IsNull(arr, i) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		c := arrowutil.Compare(arr, i, best)
		if (wantMax && c > 0) || (!wantMax && c < 0) {
			best = i
		}
	}
	if best < 0 {
		return array.MakeArrayOfNull(e.mem, arr.DataType(), 1), nil
	}

	b := array.NewInt64Builder(e.mem)
	defer b.Release()
	b.Append(int64(best))
	idx := b.NewArray()
	defer idx.Release()

	out, err := compute.TakeArray(e.kernelCtx(ctx), arr, idx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTypeMismatch, "take kernel failed")
	}
	return out, nil
}

func (e *ArrowEngine) sumOrMean(arr arrow.Array, kind AggregateKind) arrow.Array {
	integer := isInteger(arr.DataType())

	var (
		isum  int64
		fsum  float64
		count int
	)
	for i := 0; i < arr.Len(); i++ {
		f, ok := arrowutil.Float(arr, i)
		if !ok {
			continue
		}
		count++
		fsum += f
		if integer {
			isum += integerAt(arr, i)
		}
	}

	if kind == AggMean {
		b := array.NewFloat64Builder(e.mem)
		defer b.Release()
		if count == 0 {
			b.AppendNull()
		} else {
			b.Append(fsum / float64(count))
		}
		return b.NewArray()
	}

	if integer {
		return e.int64Scalar(isum, count > 0)
	}
	b := array.NewFloat64Builder(e.mem)
	defer b.Release()
	if count == 0 {
		b.AppendNull()
	} else {
		b.Append(fsum)
	}
	return b.NewArray()
}

func (e *ArrowEngine) int64Scalar(v int64, valid bool) arrow.Array {
	b := array.NewInt64Builder(e.mem)
	defer b.Release()
	if valid {
		b.Append(v)
	} else {
		b.AppendNull()
	}
	return b.NewArray()
}

func isInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

// integerAt reads an integer cell without a float64 round trip. Unsigned
// values wrap into int64.
func integerAt(arr arrow.Array, i int) int64 {
	switch c := arr.(type) {
	case *array.Int8:
		return int64(c.Value(i))
	case *array.Int16:
		return int64(c.Value(i))
	case *array.Int32:
		return int64(c.Value(i))
	case *array.Int64:
		return c.Value(i)
	case *array.Uint8:
		return int64(c.Value(i))
	case *array.Uint16:
		return int64(c.Value(i))
	case *array.Uint32:
		return int64(c.Value(i))
	case *array.Uint64:
		return int64(c.Value(i))
	}
	return 0
}
