// Package arrowutil converts between Arrow array cells and plain Go values.
package arrowutil

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// IsNull reports whether cell i is null. Arrays of the Null type carry no
// validity bitmap, so every cell is null regardless of what the array's own
// IsNull says.
func IsNull(arr arrow.Array, i int) bool {
	return arr.DataType().ID() == arrow.NULL || arr.IsNull(i)
}

// Value returns the Go value of cell i. null reports a null cell; v is nil
// then. Types without a native Go mapping are rendered with ValueStr.
func Value(arr arrow.Array, i int) (v any, null bool) {
	if IsNull(arr, i) {
		return nil, true
	}

	switch c := arr.(type) {
	case *array.Boolean:
		return c.Value(i), false
	case *array.Int8:
		return c.Value(i), false
	case *array.Int16:
		return c.Value(i), false
	case *array.Int32:
		return c.Value(i), false
	case *array.Int64:
		return c.Value(i), false
	case *array.Uint8:
		return c.Value(i), false
	case *array.Uint16:
		return c.Value(i), false
	case *array.Uint32:
		return c.Value(i), false
	case *array.Uint64:
		return c.Value(i), false
	case *array.Float16:
		return c.Value(i).Float32(), false
	case *array.Float32:
		return c.Value(i), false
	case *array.Float64:
		return c.Value(i), false
	case *array.String:
		return c.Value(i), false
	case *array.LargeString:
		return c.Value(i), false
	case *array.Binary:
		return bytes.Clone(c.Value(i)), false
	case *array.LargeBinary:
		return bytes.Clone(c.Value(i)), false
	case *array.FixedSizeBinary:
		return bytes.Clone(c.Value(i)), false
	case *array.Dictionary:
		return Value(c.Dictionary(), c.GetValueIndex(i))
	case array.ExtensionArray:
		return Value(c.Storage(), i)
	default:
		return arr.ValueStr(i), false
	}
}

// Float returns a numeric cell widened to float64. ok is false for nulls
// and non-numeric arrays.
func Float(arr arrow.Array, i int) (f float64, ok bool) {
	if IsNull(arr, i) {
		return 0, false
	}
	switch c := arr.(type) {
	case *array.Int8:
		return float64(c.Value(i)), true
	case *array.Int16:
		return float64(c.Value(i)), true
	case *array.Int32:
		return float64(c.Value(i)), true
	case *array.Int64:
		return float64(c.Value(i)), true
	case *array.Uint8:
		return float64(c.Value(i)), true
	case *array.Uint16:
		return float64(c.Value(i)), true
	case *array.Uint32:
		return float64(c.Value(i)), true
	case *array.Uint64:
		return float64(c.Value(i)), true
	case *array.Float16:
		return float64(c.Value(i).Float32()), true
	case *array.Float32:
		return float64(c.Value(i)), true
	case *array.Float64:
		return c.Value(i), true
	}
	return 0, false
}

// IsNumeric reports whether Float can read dt.
func IsNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

// Format renders cell i for display; nulls render as "null".
func Format(arr arrow.Array, i int) string {
	if IsNull(arr, i) {
		return "null"
	}
	return arr.ValueStr(i)
}

// Compare orders two non-null cells of the same array. Nulls must be
// handled by the caller.
func Compare(arr arrow.Array, i, j int) int {
	switch c := arr.(type) {
	case *array.Boolean:
		a, b := c.Value(i), c.Value(j)
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		default:
			return 1
		}
	case *array.Int8:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Int16:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Int32:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Int64:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Uint8:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Uint16:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Uint32:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Uint64:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Float32:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Float64:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Date32:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Date64:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Timestamp:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.String:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.LargeString:
		return cmp.Compare(c.Value(i), c.Value(j))
	case *array.Binary:
		return bytes.Compare(c.Value(i), c.Value(j))
	case *array.LargeBinary:
		return bytes.Compare(c.Value(i), c.Value(j))
	}
	if f1, ok := Float(arr, i); ok {
		if f2, ok := Float(arr, j); ok {
			return cmp.Compare(f1, f2)
		}
	}
	return cmp.Compare(arr.ValueStr(i), arr.ValueStr(j))
}

// Append adds v to b. A nil v appends a null. Integer and float values are
// accepted for any integer or float builder when they fit; anything else is
// a TYPE_MISMATCH error naming the builder type.
func Append(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bb := b.(type) {
	case *array.NullBuilder:
		return mismatch(b, v)
	case *array.BooleanBuilder:
		if x, ok := v.(bool); ok {
			bb.Append(x)
			return nil
		}
	case *array.Int32Builder:
		if x, ok := asInt(v); ok && x >= -1<<31 && x < 1<<31 {
			bb.Append(int32(x))
			return nil
		}
	case *array.Int64Builder:
		if x, ok := asInt(v); ok {
			bb.Append(x)
			return nil
		}
	case *array.Float32Builder:
		if x, ok := asFloat(v); ok {
			bb.Append(float32(x))
			return nil
		}
	case *array.Float64Builder:
		if x, ok := asFloat(v); ok {
			bb.Append(x)
			return nil
		}
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			bb.Append(x)
			return nil
		case []byte:
			bb.Append(string(x))
			return nil
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			bb.Append(x)
			return nil
		case string:
			bb.AppendString(x)
			return nil
		}
	default:
		return errors.Newf(errors.CodeNotImplemented, "append is not supported for %s builders", b.Type())
	}
	return mismatch(b, v)
}

func mismatch(b array.Builder, v any) error {
	return errors.Newf(errors.CodeTypeMismatch, "cannot append %T value %s to %s builder",
		v, short(v), b.Type()).WithDetail("expected", b.Type().String())
}

func short(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 32 {
		return s[:29] + "..."
	}
	return s
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x <= 1<<63-1 {
			return int64(x), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
