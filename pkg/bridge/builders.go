package bridge

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/quiver/internal/arrowutil"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/handle"
)

// columnBuilder serializes appends to one arrow builder. The registry only
// guards the handle map, so concurrent calls on one builder handle meet
// here.
type columnBuilder struct {
	mu sync.Mutex
	b  array.Builder
}

func (cb *columnBuilder) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.b.Release()
}

func builderSupported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.NULL, arrow.BOOL, arrow.INT32, arrow.INT64, arrow.FLOAT32, arrow.FLOAT64, arrow.STRING:
		return true
	}
	return false
}

// NewBuilder registers an empty column builder for the named type. null,
// bool, int32, int64, float32, float64 and utf8 are supported.
func (s *Store) NewBuilder(typeName string) (handle.Handle, error) {
	dt, err := ParseDataType(typeName)
	if err != nil {
		return handle.Invalid, err
	}
	if !builderSupported(dt) {
		return handle.Invalid, errors.Newf(errors.CodeNotImplemented, "column builders do not support %s", dt)
	}

	cb := &columnBuilder{b: array.NewBuilder(s.mem, dt)}
	h, err := s.builders.Insert(cb)
	if err != nil {
		cb.release()
		return handle.Invalid, err
	}
	return h, nil
}

func (s *Store) withBuilder(h handle.Handle, fn func(array.Builder) error) error {
	res, err := s.builders.Lookup(h)
	if err != nil {
		return err
	}
	defer res.Release()

	cb := res.Value()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fn(cb.b)
}

// AppendBuilder appends v. A nil v appends a null; a value of the wrong Go
// type is a TYPE_MISMATCH error.
func (s *Store) AppendBuilder(h handle.Handle, v any) error {
	return s.withBuilder(h, func(b array.Builder) error {
		return arrowutil.Append(b, v)
	})
}

// AppendNull appends a null.
func (s *Store) AppendNull(h handle.Handle) error {
	return s.withBuilder(h, func(b array.Builder) error {
		b.AppendNull()
		return nil
	})
}

// AppendValues appends values in order and returns how many were
// appended. It stops at the first value that does not fit; values before it
// stay appended.
func (s *Store) AppendValues(h handle.Handle, values []any) (int, error) {
	n := 0
	err := s.withBuilder(h, func(b array.Builder) error {
		for i, v := range values {
			if err := arrowutil.Append(b, v); err != nil {
				return errors.Wrapf(err, errors.CodeTypeMismatch, "value %d", i).WithDetail("index", i)
			}
			n++
		}
		return nil
	})
	return n, err
}

// BuilderLen returns the number of values appended so far.
func (s *Store) BuilderLen(h handle.Handle) (int, error) {
	n := 0
	err := s.withBuilder(h, func(b array.Builder) error {
		n = b.Len()
		return nil
	})
	return n, err
}

// FinishBuilder registers the appended values as a one-column table called
// name. The builder is left empty and stays usable.
func (s *Store) FinishBuilder(h handle.Handle, name string) (handle.Handle, error) {
	if name == "" {
		return handle.Invalid, errors.Validation("Column name cannot be empty")
	}

	var arr arrow.Array
	if err := s.withBuilder(h, func(b array.Builder) error {
		arr = b.NewArray()
		return nil
	}); err != nil {
		return handle.Invalid, err
	}
	defer arr.Release()

	t, err := oneColumnTable(name, arr, nil)
	if err != nil {
		return handle.Invalid, err
	}
	return s.insertTable(t)
}

// ClearBuilder discards the appended values.
func (s *Store) ClearBuilder(h handle.Handle) error {
	return s.withBuilder(h, func(b array.Builder) error {
		b.NewArray().Release()
		return nil
	})
}

// FreeBuilder releases a builder handle.
func (s *Store) FreeBuilder(h handle.Handle) error {
	return s.builders.Free(h)
}
