package bridge

import (
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

var dataTypes = map[string]arrow.DataType{
	"null":         arrow.Null,
	"bool":         arrow.FixedWidthTypes.Boolean,
	"boolean":      arrow.FixedWidthTypes.Boolean,
	"int8":         arrow.PrimitiveTypes.Int8,
	"int16":        arrow.PrimitiveTypes.Int16,
	"int32":        arrow.PrimitiveTypes.Int32,
	"int64":        arrow.PrimitiveTypes.Int64,
	"uint8":        arrow.PrimitiveTypes.Uint8,
	"uint16":       arrow.PrimitiveTypes.Uint16,
	"uint32":       arrow.PrimitiveTypes.Uint32,
	"uint64":       arrow.PrimitiveTypes.Uint64,
	"float32":      arrow.PrimitiveTypes.Float32,
	"float":        arrow.PrimitiveTypes.Float32,
	"float64":      arrow.PrimitiveTypes.Float64,
	"double":       arrow.PrimitiveTypes.Float64,
	"utf8":         arrow.BinaryTypes.String,
	"string":       arrow.BinaryTypes.String,
	"large_utf8":   arrow.BinaryTypes.LargeString,
	"large_string": arrow.BinaryTypes.LargeString,
	"binary":       arrow.BinaryTypes.Binary,
	"large_binary": arrow.BinaryTypes.LargeBinary,
	"date32":       arrow.FixedWidthTypes.Date32,
	"date64":       arrow.FixedWidthTypes.Date64,
	"timestamp":    arrow.FixedWidthTypes.Timestamp_us,
}

// ParseDataType resolves a type name such as "int64", "utf8" or "date32".
func ParseDataType(name string) (arrow.DataType, error) {
	if dt, ok := dataTypes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return dt, nil
	}
	names := make([]string, 0, len(dataTypes))
	for k := range dataTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return nil, errors.Validation("unknown data type %q. Supported types: [%s]", name, strings.Join(names, ", "))
}
