package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buffer struct {
	data []byte
}

func TestPoolResetsOnPut(t *testing.T) {
	p := New(
		func() *buffer { return &buffer{data: make([]byte, 0, 16)} },
		func(b *buffer) { b.data = b.data[:0] },
	)

	b := p.Get()
	b.data = append(b.data, "payload"...)
	assert.Equal(t, int64(1), p.Stats().InUse)
	p.Put(b)

	// sync.Pool may drop objects, so only the reset is guaranteed.
	assert.Empty(t, b.data)
	st := p.Stats()
	assert.Equal(t, int64(0), st.InUse)
	assert.Equal(t, int64(1), st.Gets)
	assert.Equal(t, int64(1), st.Allocated)
	assert.Equal(t, int64(0), st.Hits())
}

func TestPoolConcurrentUse(t *testing.T) {
	p := New(func() *buffer { return &buffer{} }, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Put(p.Get())
			}
		}()
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, int64(0), st.InUse)
	assert.Equal(t, int64(800), st.Gets)
	assert.LessOrEqual(t, st.Allocated, int64(800))
}

func TestBoolsTakeIsZeroed(t *testing.T) {
	b := NewBools(4)

	s, token := b.Take(3)
	require.Len(t, s, 3)
	s[0], s[2] = true, true
	b.Put(token)

	s, token = b.Take(10)
	require.Len(t, s, 10)
	for i, v := range s {
		assert.False(t, v, "index %d", i)
	}
	b.Put(token)

	assert.Equal(t, int64(0), b.Stats().InUse)
}
