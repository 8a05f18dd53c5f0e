package bridge

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/handle"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// RegisterSchema registers a standalone schema.
func (s *Store) RegisterSchema(schema *arrow.Schema) (handle.Handle, error) {
	if schema == nil {
		return handle.Invalid, errors.Validation("schema cannot be nil")
	}
	return s.schemas.Insert(schema)
}

// TableSchema registers the schema of table h under its own schema handle.
// The schema handle outlives the table.
func (s *Store) TableSchema(h handle.Handle) (handle.Handle, error) {
	var schema *arrow.Schema
	if err := s.withTable(h, func(t *table.Table) error {
		schema = t.Schema()
		return nil
	}); err != nil {
		return handle.Invalid, err
	}
	return s.schemas.Insert(schema)
}

// Schema resolves a schema handle.
func (s *Store) Schema(h handle.Handle) (*arrow.Schema, error) {
	res, err := s.schemas.Lookup(h)
	if err != nil {
		return nil, err
	}
	defer res.Release()
	return res.Value(), nil
}

// CreateEmptyTable registers a zero-row table for schema handle h.
func (s *Store) CreateEmptyTable(h handle.Handle, metadata map[string]string) (handle.Handle, error) {
	schema, err := s.Schema(h)
	if err != nil {
		return handle.Invalid, err
	}
	return s.CreateTable(schema, nil, metadata)
}

// FreeSchema releases a schema handle.
func (s *Store) FreeSchema(h handle.Handle) error {
	return s.schemas.Free(h)
}
