package bridge

import (
	"fmt"

	"github.com/ajitpratap0/quiver/internal/arrowutil"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// ValueKind distinguishes a missing cell from a null one.
type ValueKind int

const (
	// Undefined is returned for an index past the end
	Undefined ValueKind = iota
	// Null is a null cell
	Null
	// Present is a non-null cell
	Present
)

func (k ValueKind) String() string {
	switch k {
	case Null:
		return "null"
	case Present:
		return "present"
	}
	return "undefined"
}

// Value is a cell read through a view. V holds a Go value when Kind is
// Present: bool, int8..int64, uint8..uint64, float32, float64, string or
// []byte, and the arrow string rendering for every other type.
type Value struct {
	Kind ValueKind
	V    any
}

// IsUndefined reports an index past the end.
func (v Value) IsUndefined() bool { return v.Kind == Undefined }

// IsNull reports a null cell.
func (v Value) IsNull() bool { return v.Kind == Null }

// IsPresent reports a non-null cell.
func (v Value) IsPresent() bool { return v.Kind == Present }

func (v Value) String() string {
	if v.Kind != Present {
		return v.Kind.String()
	}
	return fmt.Sprint(v.V)
}

func cellValue(t *table.Table, col int, row int64) Value {
	b, local, ok := t.Locate(row)
	if !ok || col < 0 || col >= t.NumColumns() {
		return Value{}
	}
	v, null := arrowutil.Value(t.Batches()[b].Column(col), int(local))
	if null {
		return Value{Kind: Null}
	}
	return Value{Kind: Present, V: v}
}
