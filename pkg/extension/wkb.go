package extension

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// GeometryType is a WKB geometry type code.
type GeometryType uint32

const (
	Point GeometryType = iota + 1
	LineString
	Polygon
	MultiPoint
	MultiLineString
	MultiPolygon
	GeometryCollection
)

var geometryNames = map[GeometryType]string{
	Point:              "Point",
	LineString:         "LineString",
	Polygon:            "Polygon",
	MultiPoint:         "MultiPoint",
	MultiLineString:    "MultiLineString",
	MultiPolygon:       "MultiPolygon",
	GeometryCollection: "GeometryCollection",
}

func (g GeometryType) String() string {
	if name, ok := geometryNames[g]; ok {
		return name
	}
	return "Unknown"
}

// EWKB dimension flags.
const (
	ewkbZ    = 0x80000000
	ewkbM    = 0x40000000
	ewkbSRID = 0x20000000
)

const minWKBLen = 9

// GeometryInfo is the decoded WKB header.
type GeometryInfo struct {
	Type      GeometryType
	Dimension int
	// SRID is set for EWKB values that embed one
	SRID uint32
}

// ParseWKB decodes a WKB header. It accepts ISO codes (1000, 2000, 3000
// offsets) and EWKB flags.
func ParseWKB(data []byte) (GeometryInfo, error) {
	if len(data) < minWKBLen {
		return GeometryInfo{}, errors.Validation("invalid WKB: too short (%d bytes, need at least %d)", len(data), minWKBLen)
	}

	var order binary.ByteOrder
	switch data[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return GeometryInfo{}, errors.Validation("invalid WKB: bad byte order %d", data[0])
	}

	code := order.Uint32(data[1:5])
	info := GeometryInfo{Dimension: 2}

	if code&ewkbZ != 0 {
		info.Dimension = 3
	}
	if code&ewkbSRID != 0 {
		info.SRID = order.Uint32(data[5:9])
	}
	code &^= ewkbZ | ewkbM | ewkbSRID

	switch code / 1000 {
	case 0:
	case 1, 2:
		info.Dimension = 3
	case 3:
		info.Dimension = 4
	default:
		return GeometryInfo{}, errors.Validation("invalid WKB: unknown geometry type code %d", code)
	}

	info.Type = GeometryType(code % 1000)
	if info.Type < Point || info.Type > GeometryCollection {
		return GeometryInfo{}, errors.Validation("invalid WKB: unknown geometry type code %d", code)
	}
	return info, nil
}

type binaryValues interface {
	arrow.Array
	Value(i int) []byte
}

func validateGeometryColumn(arr arrow.Array) error {
	if ext, ok := arr.(array.ExtensionArray); ok {
		arr = ext.Storage()
	}
	values, ok := arr.(binaryValues)
	if !ok {
		return errors.Newf(errors.CodeTypeMismatch, "geometry columns must be binary, got %s", arr.DataType())
	}

	for i := 0; i < values.Len(); i++ {
		if values.IsNull(i) {
			continue
		}
		if _, err := ParseWKB(values.Value(i)); err != nil {
			return errors.Wrapf(err, errors.CodeValidation, "row %d", i).WithDetail("row", i)
		}
	}
	return nil
}
