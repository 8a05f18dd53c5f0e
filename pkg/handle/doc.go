// Package handle implements the registry that lets a host reference
// native-owned resources by small integer ids instead of pointers.
//
// # Overview
//
// A Registry is an arena keyed by Handle. Each kind of resource (tables,
// schemas, column builders) gets its own Registry, so handle values are only
// unique within a kind. Handles start at 1, grow monotonically and are never
// reissued, not even after Free or Clear; 0 is reserved as the null handle.
//
// Entries are reference counted. The registry holds one reference for as
// long as the entry is registered and every Get adds one more:
//
//	res, ok := reg.Get(h)
//	if !ok {
//		return errors.InvalidHandle("table", uint32(h))
//	}
//	defer res.Release()
//
// The release hook configured with WithReleaseFunc runs once the entry has
// been removed and the last outstanding reference is dropped, which is where
// arrow buffers are returned to their allocator.
//
// # Concurrency
//
// A single mutex per Registry serializes Insert, Get, Remove and friends.
// The lock is never held while user code runs: release hooks, observers and
// the callback passed to Each all execute after it is dropped.
package handle
