package extension

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

func pointWKB(order binary.ByteOrder, code uint32, x, y float64) []byte {
	buf := make([]byte, 21)
	if order == binary.LittleEndian {
		buf[0] = 1
	}
	order.PutUint32(buf[1:5], code)
	order.PutUint64(buf[5:13], math.Float64bits(x))
	order.PutUint64(buf[13:21], math.Float64bits(y))
	return buf
}

func geometryField(name, ext string, dt arrow.DataType) arrow.Field {
	md := arrow.NewMetadata([]string{ExtensionNameKey}, []string{ext})
	return arrow.Field{Name: name, Type: dt, Nullable: true, Metadata: md}
}

func TestKindIDs(t *testing.T) {
	assert.Equal(t, "io.arrow.plugin.geo.v1", Geometry.ID())
	assert.Equal(t, "io.arrow.plugin.demo.v1", Demo.ID())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"geo":                     Geometry,
		"Geometry":                Geometry,
		"geo.v1":                  Geometry,
		"plugin.geo.v1":           Geometry,
		"io.arrow.geometry.v1":    Geometry,
		"io.arrow.plugin.geo.v1":  Geometry,
		"dummy":                   Demo,
		"io.arrow.plugin.demo.v1": Demo,
	}
	for id, want := range tests {
		got, err := ParseKind(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}

	for _, bad := range []string{"", "raster", "a.b.c.d.e.f", "io.arrow.plugin.raster.v1"} {
		_, err := ParseKind(bad)
		assert.True(t, errors.IsCode(err, errors.CodeValidation), bad)
	}
}

func TestRegistryRejectsDuplicateEnable(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	require.NoError(t, r.Enable(Geometry))
	err := r.Enable(Geometry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "io.arrow.plugin.geo.v1' is already enabled")

	k, err := r.EnableID("demo")
	require.NoError(t, err)
	assert.Equal(t, Demo, k)

	assert.Equal(t, []Kind{Geometry, Demo}, r.Enabled())
	assert.Equal(t, []Info{
		{ID: "io.arrow.plugin.geo.v1", Kind: "geo", Version: "1.0.0"},
		{ID: "io.arrow.plugin.demo.v1", Kind: "demo", Version: "0.1.0"},
	}, r.List())

	require.NoError(t, r.Disable(Demo))
	assert.False(t, r.IsEnabled(Demo))
	assert.Error(t, r.Disable(Demo))
	assert.Error(t, r.Enable(Kind(0)))

	r.Clear()
	assert.Empty(t, r.Enabled())
}

func TestGeometryValidateField(t *testing.T) {
	tests := []struct {
		name  string
		field arrow.Field
		ok    bool
	}{
		{"geo point large binary", geometryField("loc", "geo.point", arrow.BinaryTypes.LargeBinary), true},
		{"wkb binary", geometryField("loc", "wkb", arrow.BinaryTypes.Binary), true},
		{"geometry", geometryField("loc", "geometry", arrow.BinaryTypes.LargeBinary), true},
		{"wrong storage", geometryField("loc", "geo.point", arrow.BinaryTypes.String), false},
		{"other extension", geometryField("loc", "uuid", arrow.BinaryTypes.Binary), false},
		{"no metadata", arrow.Field{Name: "loc", Type: arrow.BinaryTypes.LargeBinary}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, Geometry.Matches(tt.field))
			err := Geometry.ValidateField(tt.field)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, "is not a valid geometry field")
			}
			assert.NoError(t, Demo.ValidateField(tt.field))
		})
	}
}

func TestParseWKB(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want GeometryInfo
	}{
		{"little endian point", pointWKB(binary.LittleEndian, 1, 1, 2), GeometryInfo{Type: Point, Dimension: 2}},
		{"big endian polygon", pointWKB(binary.BigEndian, 3, 0, 0), GeometryInfo{Type: Polygon, Dimension: 2}},
		{"ewkb z flag", pointWKB(binary.LittleEndian, ewkbZ|1, 0, 0), GeometryInfo{Type: Point, Dimension: 3}},
		{"iso z", pointWKB(binary.LittleEndian, 1001, 0, 0), GeometryInfo{Type: Point, Dimension: 3}},
		{"iso zm collection", pointWKB(binary.LittleEndian, 3007, 0, 0), GeometryInfo{Type: GeometryCollection, Dimension: 4}},
		{"ewkb srid", pointWKB(binary.LittleEndian, ewkbSRID|2, 0, 0), GeometryInfo{Type: LineString, Dimension: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWKB(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWKB([]byte{1, 1, 0, 0, 0, 0, 0, 0})
	assert.ErrorContains(t, err, "too short")
	_, err = ParseWKB(pointWKB(binary.LittleEndian, 1, 0, 0)[:9])
	assert.NoError(t, err)

	bad := pointWKB(binary.LittleEndian, 1, 0, 0)
	bad[0] = 7
	_, err = ParseWKB(bad)
	assert.ErrorContains(t, err, "bad byte order 7")

	_, err = ParseWKB(pointWKB(binary.LittleEndian, 8, 0, 0))
	assert.ErrorContains(t, err, "unknown geometry type code 8")
	_, err = ParseWKB(pointWKB(binary.LittleEndian, 4001, 0, 0))
	assert.ErrorContains(t, err, "unknown geometry type code 4001")
	assert.Equal(t, "MultiPolygon", MultiPolygon.String())
}

func TestGeometryValidateColumn(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.LargeBinary)
	defer b.Release()
	b.Append(pointWKB(binary.LittleEndian, 1, 1, 2))
	b.AppendNull()
	b.Append(pointWKB(binary.BigEndian, 6, 0, 0))
	good := b.NewArray()
	defer good.Release()

	assert.NoError(t, Geometry.ValidateColumn(good))
	assert.NoError(t, Demo.ValidateColumn(good))

	b.Append(pointWKB(binary.LittleEndian, 1, 1, 2))
	b.Append([]byte{1, 2, 3})
	bad := b.NewArray()
	defer bad.Release()

	err := Geometry.ValidateColumn(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.Contains(t, err.Error(), "row 1")

	ib := array.NewInt64Builder(mem)
	defer ib.Release()
	ib.Append(1)
	ints := ib.NewArray()
	defer ints.Release()
	assert.True(t, errors.IsCode(Geometry.ValidateColumn(ints), errors.CodeTypeMismatch))
}
