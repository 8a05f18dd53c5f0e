package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/testutil"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	mem := testutil.Allocator(t)
	schema, recs := testutil.SampleRecords(mem)
	defer testutil.ReleaseAll(recs)

	tbl, err := New(schema, recs, map[string]string{"origin": "test"})
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl
}

func TestNewCountsRows(t *testing.T) {
	tbl := sampleTable(t)
	assert.Equal(t, int64(5), tbl.NumRows())
	assert.Equal(t, 4, tbl.NumColumns())
	assert.Equal(t, 2, tbl.NumBatches())
	assert.Equal(t, []string{"id", "name", "score", "active"}, tbl.FieldNames())
	assert.Equal(t, "Schema: 4 fields, 2 batches, 5 total rows", tbl.FormatInfo())
}

func TestNewRejectsMismatchedBatch(t *testing.T) {
	mem := testutil.Allocator(t)
	_, recs := testutil.SampleRecords(mem)
	defer testutil.ReleaseAll(recs)

	other := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int32}}, nil)
	_, err := New(other, recs, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSchemaMismatch))
	assert.Contains(t, err.Error(), "batch 0")

	_, err = New(nil, recs, nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestMetadataIsCopied(t *testing.T) {
	tbl := sampleTable(t)
	md := tbl.Metadata()
	md["origin"] = "changed"
	assert.Equal(t, "test", tbl.Metadata()["origin"])

	merged, err := tbl.WithMetadata(map[string]string{"extra": "1"})
	require.NoError(t, err)
	defer merged.Release()
	assert.Equal(t, map[string]string{"origin": "test", "extra": "1"}, merged.Metadata())
}

func TestSliceAcrossBatches(t *testing.T) {
	tbl := sampleTable(t)

	s, err := tbl.Slice(2, 2)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, int64(2), s.NumRows())
	assert.Equal(t, 2, s.NumBatches())

	ids, err := s.Column(0)
	require.NoError(t, err)
	defer ids.Release()
	assert.Equal(t, int64(3), ids.Chunk(0).(*array.Int64).Value(0))
	assert.Equal(t, int64(4), ids.Chunk(1).(*array.Int64).Value(0))

	assert.Equal(t, int64(5), tbl.NumRows(), "source table is untouched")
}

func TestSlicePreconditions(t *testing.T) {
	tbl := sampleTable(t)

	tests := []struct {
		name           string
		offset, length int64
		message        string
	}{
		{"zero length", 0, 0, "Slice length must be greater than 0"},
		{"negative length", 0, -1, "Slice length must be greater than 0"},
		{"offset at end", 5, 1, "Slice offset 5 is out of bounds. Table has 5 rows"},
		{"negative offset", -1, 1, "Slice offset -1 is out of bounds. Table has 5 rows"},
		{"range past end", 3, 3, "Slice range [3..6] exceeds table bounds. Table has 5 rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.Slice(tt.offset, tt.length)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeOutOfBounds))
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, "row_count=5", errors.ToBoundary(err).Details)
		})
	}

	whole, err := tbl.Slice(0, 5)
	require.NoError(t, err)
	defer whole.Release()
	assert.Equal(t, int64(5), whole.NumRows())
}

func TestSelectOrderAndNulls(t *testing.T) {
	tbl := sampleTable(t)

	sel, err := tbl.Select([]string{"score", "id"})
	require.NoError(t, err)
	defer sel.Release()

	assert.Equal(t, []string{"score", "id"}, sel.FieldNames())
	assert.Equal(t, tbl.NumRows(), sel.NumRows())
	assert.Equal(t, tbl.NumBatches(), sel.NumBatches())
	assert.Equal(t, tbl.Schema().Metadata(), sel.Schema().Metadata())

	// Column arrays are shared, not copied.
	assert.Same(t, tbl.Batches()[0].Column(2), sel.Batches()[0].Column(0))
	assert.True(t, sel.Batches()[0].Column(0).IsNull(2))
}

func TestSelectErrors(t *testing.T) {
	tbl := sampleTable(t)

	_, err := tbl.Select(nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	_, err = tbl.Select([]string{"id", "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Column 'missing' not found. Available columns: [id, name, score, active]")

	_, err = tbl.Select([]string{""})
	assert.Contains(t, err.Error(), "Column name cannot be empty")

	_, err = tbl.SelectIndices([]int{4})
	assert.True(t, errors.IsCode(err, errors.CodeOutOfBounds))
}

func TestLocate(t *testing.T) {
	tbl := sampleTable(t)

	tests := []struct {
		row   int64
		batch int
		local int64
		ok    bool
	}{
		{0, 0, 0, true},
		{2, 0, 2, true},
		{3, 1, 0, true},
		{4, 1, 1, true},
		{5, 0, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		b, l, ok := tbl.Locate(tt.row)
		assert.Equal(t, tt.ok, ok, "row %d", tt.row)
		assert.Equal(t, tt.batch, b, "row %d", tt.row)
		assert.Equal(t, tt.local, l, "row %d", tt.row)
	}
}

func TestSummaryJSON(t *testing.T) {
	tbl := sampleTable(t)

	data, err := tbl.SummaryJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"columns": [
			{"name": "id", "arrow_type": "int64", "nullable": false},
			{"name": "name", "arrow_type": "utf8", "nullable": true},
			{"name": "score", "arrow_type": "float64", "nullable": true},
			{"name": "active", "arrow_type": "bool", "nullable": false}
		],
		"metadata": {"origin": "test"}
	}`, string(data))
}

func TestReleaseIsIdempotent(t *testing.T) {
	mem := testutil.Allocator(t)
	schema, recs := testutil.SampleRecords(mem)

	tbl, err := New(schema, recs, nil)
	require.NoError(t, err)
	testutil.ReleaseAll(recs)

	tbl.Release()
	tbl.Release()
}
