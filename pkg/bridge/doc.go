// Package bridge is quiver's host boundary. A Store owns one handle
// registry per resource kind (tables, schemas, column builders) and every
// operation a host can perform takes and returns plain values, byte slices,
// handles or view descriptors.
//
// # Lifecycle
//
// Resources come into existence through explicit calls (Decode,
// CreateTable, NewBuilder, ...) and leave only through explicit ones (Free,
// FreeSchema, FreeBuilder, ClearAll). Operations never mutate the table
// behind a handle; every derived table gets a handle of its own.
//
//	store := bridge.NewStore(bridge.WithLogger(log))
//	h, err := store.Decode(ctx, data)
//	if err != nil {
//		return errors.ToBoundary(err)
//	}
//	defer store.Free(h)
//
//	first, err := store.Slice(h, 0, 10)
//
// # Views
//
// TableView, ColumnView and RowView are (handle, index) pairs. They hold no
// buffers and re-resolve their handle on every call, so a view of a freed
// table fails with INVALID_HANDLE instead of reading released memory.
//
// # Callbacks
//
// Filter runs a host predicate once per row. The table is retained before
// the first call and no registry lock is held while the predicate runs.
package bridge
