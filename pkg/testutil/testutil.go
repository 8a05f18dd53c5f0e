// Package testutil provides testing utilities for quiver packages.
package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Allocator returns a checked arrow allocator. When the test ends every
// buffer allocated through it must have been released.
func Allocator(t testing.TB) *memory.CheckedAllocator {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return mem
}

// SampleSchema is the schema of the records built by SampleRecords:
// id int64, name utf8 (nullable), score float64 (nullable), active bool.
func SampleSchema() *arrow.Schema {
	md := arrow.NewMetadata([]string{"source"}, []string{"testutil"})
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "active", Type: arrow.FixedWidthTypes.Boolean},
	}, &md)
}

// SampleRecords builds two batches of three and two rows:
//
//	id  name   score  active
//	1   alpha  1.5    true
//	2   null   2.5    false
//	3   gamma  null   true
//	--
//	4   delta  0.5    false
//	5   alpha  9.0    true
//
// The caller owns the records.
func SampleRecords(mem memory.Allocator) (*arrow.Schema, []arrow.Record) {
	schema := SampleSchema()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"alpha", "", "gamma"}, []bool{true, false, true})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{1.5, 2.5, 0}, []bool{true, true, false})
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false, true}, nil)
	first := b.NewRecord()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{4, 5}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"delta", "alpha"}, nil)
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{0.5, 9.0}, nil)
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{false, true}, nil)
	second := b.NewRecord()

	return schema, []arrow.Record{first, second}
}

// Int64Array builds an int64 array; a nil entry in valid marks all cells
// valid.
func Int64Array(mem memory.Allocator, values []int64, valid []bool) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

// StringArray builds a utf8 array.
func StringArray(mem memory.Allocator, values []string, valid []bool) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

// Float64Array builds a float64 array.
func Float64Array(mem memory.Allocator, values []float64, valid []bool) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewArray()
}

// ReleaseAll releases every record.
func ReleaseAll(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}

// GenerateRecords builds rows of synthetic data split into batches of at
// most batchRows: id int64, label utf8 (every seventh null), value float64.
// The caller owns the records.
func GenerateRecords(mem memory.Allocator, rows, batchRows int) (*arrow.Schema, []arrow.Record) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "label", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	if batchRows <= 0 {
		batchRows = rows
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	var recs []arrow.Record
	for start := 0; start < rows; start += batchRows {
		end := min(start+batchRows, rows)
		for i := start; i < end; i++ {
			b.Field(0).(*array.Int64Builder).Append(int64(i))
			if i%7 == 0 {
				b.Field(1).AppendNull()
			} else {
				b.Field(1).(*array.StringBuilder).Append("label_" + strconv.Itoa(i%100))
			}
			b.Field(2).(*array.Float64Builder).Append(float64((i*7919)%1000) / 10)
		}
		recs = append(recs, b.NewRecord())
	}
	return schema, recs
}
