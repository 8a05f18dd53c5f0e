// Package extension implements the column extensions quiver can validate
// tables against. The set is closed: every extension is a Kind value and
// its behavior is a switch on that value, so there is nothing to load or
// register beyond enabling a Kind in a Registry.
package extension

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// ExtensionNameKey is the field metadata key naming a column's extension
// type.
const ExtensionNameKey = "ARROW:extension:name"

// Kind identifies an extension.
type Kind int

const (
	// Geometry validates WKB geometry columns.
	Geometry Kind = iota + 1
	// Demo accepts every field and checks nothing.
	Demo
)

// Kinds lists every extension.
func Kinds() []Kind {
	return []Kind{Geometry, Demo}
}

// String returns the short name used in IDs.
func (k Kind) String() string {
	switch k {
	case Geometry:
		return "geo"
	case Demo:
		return "demo"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ID returns the stable identifier, e.g. io.arrow.plugin.geo.v1.
func (k Kind) ID() string {
	return "io.arrow.plugin." + k.String() + ".v1"
}

// Version returns the extension version.
func (k Kind) Version() string {
	switch k {
	case Geometry:
		return "1.0.0"
	default:
		return "0.1.0"
	}
}

// ParseKind resolves a kind from a short name ("geo", "geometry", "demo",
// "dummy") or a dotted ID. Dotted IDs carry the name in a position that
// depends on their length: geo.v1, plugin.geo.v1, io.arrow.geo.v1 and
// io.arrow.plugin.geo.v1 all name Geometry.
func ParseKind(id string) (Kind, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, errors.Validation("extension id cannot be empty")
	}

	name := id
	if parts := strings.Split(id, "."); len(parts) > 1 {
		switch len(parts) {
		case 2:
			name = parts[0]
		case 3:
			name = parts[1]
		case 4:
			name = parts[2]
		case 5:
			name = parts[3]
		default:
			return 0, errors.Validation("invalid extension id %q: expected forms are type, type.version or domain.type.version", id)
		}
	}

	switch strings.ToLower(name) {
	case "geo", "geometry":
		return Geometry, nil
	case "demo", "dummy":
		return Demo, nil
	}
	return 0, errors.Validation("unknown extension type %q in id %q. Available types: geo, demo", name, id)
}

// ExtensionName returns the extension name carried by a field: the name of
// an arrow extension type, else the ARROW:extension:name metadata value.
func ExtensionName(f arrow.Field) (string, bool) {
	if ext, ok := f.Type.(arrow.ExtensionType); ok {
		return ext.ExtensionName(), true
	}
	if idx := f.Metadata.FindKey(ExtensionNameKey); idx >= 0 {
		return f.Metadata.Values()[idx], true
	}
	return "", false
}

// Matches reports whether k applies to f.
func (k Kind) Matches(f arrow.Field) bool {
	switch k {
	case Geometry:
		return isGeometryField(f)
	case Demo:
		return true
	}
	return false
}

// ValidateField checks that f is a field k can handle.
func (k Kind) ValidateField(f arrow.Field) error {
	switch k {
	case Geometry:
		if !isGeometryField(f) {
			return errors.Validation("field '%s' is not a valid geometry field", f.Name).
				WithDetail("extension", k.ID())
		}
		return nil
	case Demo:
		return nil
	}
	return errors.Validation("unknown extension %s", k)
}

// ValidateColumn checks every cell of arr. Null cells are skipped.
func (k Kind) ValidateColumn(arr arrow.Array) error {
	switch k {
	case Geometry:
		return validateGeometryColumn(arr)
	case Demo:
		return nil
	}
	return errors.Validation("unknown extension %s", k)
}

func isGeometryField(f arrow.Field) bool {
	storage := f.Type
	if ext, ok := f.Type.(arrow.ExtensionType); ok {
		storage = ext.StorageType()
	}
	switch storage.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY:
	default:
		return false
	}

	name, ok := ExtensionName(f)
	if !ok {
		return false
	}
	return strings.HasPrefix(name, "geo.") || name == "geometry" || name == "wkb"
}
