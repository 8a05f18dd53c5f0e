// Package pool provides a typed wrapper over sync.Pool that keeps usage
// counters.
//
//	masks := pool.New(
//	    func() *[]bool { s := make([]bool, 0, 1024); return &s },
//	    func(s *[]bool) { *s = (*s)[:0] },
//	)
//	m := masks.Get()
//	defer masks.Put(m)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed object pool. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)

	allocated atomic.Int64
	inUse     atomic.Int64
	gets      atomic.Int64
}

// New creates a pool. reset, when non-nil, runs on every object handed to
// Put.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		p.allocated.Add(1)
		return newFn()
	}
	return p
}

// Get returns a pooled object, allocating one when the pool is empty.
func (p *Pool[T]) Get() T {
	p.inUse.Add(1)
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.inUse.Add(-1)
	p.pool.Put(obj)
}

// Stats is a snapshot of a pool's counters.
type Stats struct {
	// Allocated counts objects created by the factory
	Allocated int64
	InUse     int64
	Gets      int64
}

// Hits is the number of Gets served without allocating.
func (s Stats) Hits() int64 { return s.Gets - s.Allocated }

// Stats returns the current counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocated: p.allocated.Load(),
		InUse:     p.inUse.Load(),
		Gets:      p.gets.Load(),
	}
}

// Bools pools bool slices. Get a slice with Take and return it with Put.
type Bools struct {
	p *Pool[*[]bool]
}

// NewBools creates a pool of bool slices with the given initial capacity.
func NewBools(capacity int) *Bools {
	return &Bools{p: New(func() *[]bool {
		s := make([]bool, 0, capacity)
		return &s
	}, nil)}
}

// Take returns a zeroed slice of length n and the token to hand back to Put.
func (b *Bools) Take(n int) ([]bool, *[]bool) {
	token := b.p.Get()
	if cap(*token) < n {
		*token = make([]bool, n)
	} else {
		*token = (*token)[:n]
		clear(*token)
	}
	return *token, token
}

// Put returns a slice obtained from Take.
func (b *Bools) Put(token *[]bool) { b.p.Put(token) }

// Stats returns the underlying pool counters.
func (b *Bools) Stats() Stats { return b.p.Stats() }
