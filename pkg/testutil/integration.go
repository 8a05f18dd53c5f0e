package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// ArrowSuite is a testify suite base for tests that decode or encode files.
// Each test gets a fresh checked allocator that must be empty when the test
// finishes.
type ArrowSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
	mem     *memory.CheckedAllocator
	log     *zap.Logger
}

// SetupSuite runs before all tests in the suite
func (s *ArrowSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)

	tempDir, err := os.MkdirTemp("", "quiver-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *ArrowSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// SetupTest installs a fresh allocator and logger.
func (s *ArrowSuite) SetupTest() {
	s.mem = memory.NewCheckedAllocator(memory.NewGoAllocator())
	s.log = zaptest.NewLogger(s.T())
}

// TearDownTest checks for leaked arrow buffers.
func (s *ArrowSuite) TearDownTest() {
	s.mem.AssertSize(s.T(), 0)
}

// Context returns the suite context
func (s *ArrowSuite) Context() context.Context { return s.ctx }

// Mem returns the per-test checked allocator.
func (s *ArrowSuite) Mem() *memory.CheckedAllocator { return s.mem }

// Logger returns the per-test logger.
func (s *ArrowSuite) Logger() *zap.Logger { return s.log }

// TempDir returns the temporary directory path
func (s *ArrowSuite) TempDir() string { return s.tempDir }

// CreateTempFile creates a temporary file with content
func (s *ArrowSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o644))
	return path
}
