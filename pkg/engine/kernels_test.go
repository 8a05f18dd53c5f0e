package engine

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/testutil"
)

func newTestEngine(t *testing.T) (*ArrowEngine, context.Context) {
	t.Helper()
	mem := testutil.Allocator(t)
	return New(WithAllocator(mem), WithLogger(testutil.TestLogger(t))), context.Background()
}

func TestCast(t *testing.T) {
	e, ctx := newTestEngine(t)
	in := testutil.Int64Array(e.Allocator(), []int64{1, 300, 0}, []bool{true, true, false})
	defer in.Release()

	out, err := e.Cast(ctx, in, arrow.PrimitiveTypes.Float64)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, arrow.FLOAT64, out.DataType().ID())
	assert.Equal(t, 300.0, out.(*array.Float64).Value(1))
	assert.True(t, out.IsNull(2))

	same, err := e.Cast(ctx, in, arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	same.Release()

	_, err = e.Cast(ctx, in, arrow.PrimitiveTypes.Int8)
	assert.True(t, errors.IsCode(err, errors.CodeTypeMismatch), "overflow: %v", err)

	words := testutil.StringArray(e.Allocator(), []string{"abc"}, nil)
	defer words.Release()
	_, err = e.Cast(ctx, words, arrow.PrimitiveTypes.Int32)
	assert.True(t, errors.IsCode(err, errors.CodeTypeMismatch))
}

func TestFilterAndTake(t *testing.T) {
	e, ctx := newTestEngine(t)
	in := testutil.StringArray(e.Allocator(), []string{"a", "b", "c", "d"}, []bool{true, false, true, true})
	defer in.Release()

	kept, err := e.Filter(ctx, in, []bool{true, true, false, true})
	require.NoError(t, err)
	defer kept.Release()
	require.Equal(t, 3, kept.Len())
	assert.Equal(t, "a", kept.(*array.String).Value(0))
	assert.True(t, kept.IsNull(1))
	assert.Equal(t, "d", kept.(*array.String).Value(2))

	_, err = e.Filter(ctx, in, []bool{true})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	taken, err := e.Take(ctx, in, []int64{3, 3, 0})
	require.NoError(t, err)
	defer taken.Release()
	assert.Equal(t, []string{"d", "d", "a"}, []string{
		taken.(*array.String).Value(0), taken.(*array.String).Value(1), taken.(*array.String).Value(2),
	})

	_, err = e.Take(ctx, in, []int64{4})
	assert.True(t, errors.IsCode(err, errors.CodeOutOfBounds))
	_, err = e.Take(ctx, in, []int64{-1})
	assert.True(t, errors.IsCode(err, errors.CodeOutOfBounds))
}

func TestSortIndicesNullsLast(t *testing.T) {
	e, ctx := newTestEngine(t)
	in := testutil.Int64Array(e.Allocator(), []int64{3, 0, 1, 3, 2}, []bool{true, false, true, true, true})
	defer in.Release()

	asc, err := e.SortIndices(ctx, in, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 0, 3, 1}, asc)

	desc, err := e.SortIndices(ctx, in, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3, 4, 2, 1}, desc, "stable for ties, nulls last")

	sorted, err := e.Sort(ctx, in, false)
	require.NoError(t, err)
	defer sorted.Release()
	assert.Equal(t, int64(1), sorted.(*array.Int64).Value(0))
	assert.True(t, sorted.IsNull(4))
}

func TestSortUnsupportedType(t *testing.T) {
	e, ctx := newTestEngine(t)
	lb := array.NewListBuilder(e.Allocator(), arrow.PrimitiveTypes.Int32)
	defer lb.Release()
	lb.AppendNull()
	list := lb.NewArray()
	defer list.Release()

	_, err := e.SortIndices(ctx, list, false)
	assert.True(t, errors.IsCode(err, errors.CodeNotImplemented))
}

func TestAggregate(t *testing.T) {
	e, ctx := newTestEngine(t)
	ints := testutil.Int64Array(e.Allocator(), []int64{4, 0, 1, 4}, []bool{true, false, true, true})
	defer ints.Release()
	floats := testutil.Float64Array(e.Allocator(), []float64{0.5, 1.5}, nil)
	defer floats.Release()
	words := testutil.StringArray(e.Allocator(), []string{"pear", "apple", "fig"}, nil)
	defer words.Release()
	empty := testutil.Int64Array(e.Allocator(), []int64{0, 0}, []bool{false, false})
	defer empty.Release()

	tests := []struct {
		name string
		arr  arrow.Array
		kind AggregateKind
		want string
	}{
		{"int sum", ints, AggSum, "9"},
		{"int mean", ints, AggMean, "3"},
		{"int min", ints, AggMin, "1"},
		{"int max", ints, AggMax, "4"},
		{"count skips nulls", ints, AggCount, "3"},
		{"count distinct", ints, AggCountDistinct, "2"},
		{"float sum", floats, AggSum, "2"},
		{"string min", words, AggMin, "apple"},
		{"string max", words, AggMax, "pear"},
		{"all null sum", empty, AggSum, "(null)"},
		{"all null max", empty, AggMax, "(null)"},
		{"all null count", empty, AggCount, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Aggregate(ctx, tt.arr, tt.kind)
			require.NoError(t, err)
			defer out.Release()
			require.Equal(t, 1, out.Len())
			assert.Equal(t, tt.want, out.ValueStr(0))
		})
	}

	_, err := e.Aggregate(ctx, words, AggSum)
	assert.True(t, errors.IsCode(err, errors.CodeTypeMismatch))
	_, err = e.Aggregate(ctx, ints, "median")
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestParseAggregate(t *testing.T) {
	for _, k := range AggregateKinds() {
		got, err := ParseAggregate(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseAggregate(" AVG ")
	require.NoError(t, err)
	assert.Equal(t, AggMean, got)
	_, err = ParseAggregate("p99")
	assert.Error(t, err)
}
