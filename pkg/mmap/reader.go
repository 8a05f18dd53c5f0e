// Package mmap maps input files read-only so large Arrow and Parquet files
// can be decoded without first copying them onto the heap.
package mmap

import (
	"os"
	"sync"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// File is a read-only view of a file's contents. When the platform cannot
// map the file the contents are read into memory instead.
type File struct {
	mu     sync.RWMutex
	data   []byte
	mapped bool
	closed bool
}

// Open maps path. Empty files are returned as an empty, unmapped view
// since zero-length mappings are rejected by the kernel.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // caller chooses the input
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "failed to open %s", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "failed to stat %s", path)
	}
	if stat.IsDir() {
		return nil, errors.Newf(errors.CodeIO, "%s is a directory", path)
	}

	size := stat.Size()
	if size == 0 {
		return &File{data: []byte{}}, nil
	}
	if int64(int(size)) != size {
		return nil, errors.Newf(errors.CodeMemory, "%s is too large to map (%d bytes)", path, size)
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "failed to map %s", path)
	}
	return &File{data: data, mapped: mapped}, nil
}

// Bytes returns the file contents. The slice is invalid after Close.
func (m *File) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

// Len returns the file size.
func (m *File) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Mapped reports whether the contents are backed by a mapping.
func (m *File) Mapped() bool { return m.mapped }

// Close releases the mapping. It is idempotent.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.mapped {
		err = unmapFile(m.data)
	}
	m.data = nil
	if err != nil {
		return errors.Wrap(err, errors.CodeIO, "failed to unmap file")
	}
	return nil
}
