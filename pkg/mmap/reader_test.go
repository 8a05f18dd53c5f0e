package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestOpenMapsContents(t *testing.T) {
	f, err := Open(writeTemp(t, []byte("ARROW1 payload")))
	require.NoError(t, err)

	assert.Equal(t, []byte("ARROW1 payload"), f.Bytes())
	assert.Equal(t, 14, f.Len())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Nil(t, f.Bytes())
}

func TestOpenEmptyFile(t *testing.T) {
	f, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	assert.False(t, f.Mapped())
	assert.Empty(t, f.Bytes())
	require.NoError(t, f.Close())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.IsCode(err, errors.CodeIO))

	_, err = Open(t.TempDir())
	assert.True(t, errors.IsCode(err, errors.CodeIO))
}
