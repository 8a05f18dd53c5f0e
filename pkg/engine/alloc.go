package engine

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/sniff"
)

const (
	// decodeExpansion bounds a single decode allocation relative to the
	// encoded input. Compressed bodies and dictionary pages legitimately
	// expand, but not by more than this.
	decodeExpansion = 1024
	// minDecodeAlloc is the per-allocation ceiling for small inputs.
	minDecodeAlloc = 256 << 20
)

// allocRefused is the panic value boundedAllocator raises. arrow-go's
// memory.Allocator has no error return, so Decode recovers it.
type allocRefused struct {
	size  int
	limit int
}

func (a allocRefused) String() string {
	return fmt.Sprintf("allocation of %d bytes exceeds decode limit of %d bytes", a.size, a.limit)
}

// boundedAllocator refuses any single allocation above limit. Corrupt
// headers can claim buffer lengths in the terabytes; the runtime treats
// such an allocation as fatal rather than recoverable.
type boundedAllocator struct {
	memory.Allocator
	limit int
}

func newBoundedAllocator(mem memory.Allocator, floor, inputLen int) *boundedAllocator {
	limit := floor
	if inputLen > 0 && inputLen <= (int(^uint(0)>>1))/decodeExpansion {
		limit = max(limit, inputLen*decodeExpansion)
	}
	return &boundedAllocator{Allocator: mem, limit: limit}
}

func (b *boundedAllocator) check(size int) {
	if size < 0 || size > b.limit {
		panic(allocRefused{size: size, limit: b.limit})
	}
}

func (b *boundedAllocator) Allocate(size int) []byte {
	b.check(size)
	return b.Allocator.Allocate(size)
}

func (b *boundedAllocator) Reallocate(size int, buf []byte) []byte {
	b.check(size)
	return b.Allocator.Reallocate(size, buf)
}

// decodePanic turns a panic raised inside an arrow-go reader into a coded
// error naming the format.
func decodePanic(r any, format sniff.Format, inputLen int) *errors.Error {
	if refused, ok := r.(allocRefused); ok {
		return errors.Newf(errors.CodeMemory, "corrupt %s input: %s", format.DisplayName(), refused).
			WithDetail("format", format.String()).
			WithDetail("bytes", inputLen).
			WithDetail("requested", refused.size)
	}
	return errors.Newf(errors.CodeIO, "corrupt %s input: %v", format.DisplayName(), r).
		WithDetail("format", format.String()).
		WithDetail("bytes", inputLen)
}
