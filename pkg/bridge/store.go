package bridge

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/engine"
	"github.com/ajitpratap0/quiver/pkg/extension"
	"github.com/ajitpratap0/quiver/pkg/handle"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// Observer receives registry and detection events. *metrics.Collector
// implements it.
type Observer interface {
	handle.Observer
	SniffResult(format, outcome string)
}

// Option configures a Store.
type Option func(*Store)

// WithEngine sets the codec and kernel implementation. The default is an
// ArrowEngine on the store allocator.
func WithEngine(e engine.DataEngine) Option {
	return func(s *Store) { s.engine = e }
}

// WithAllocator sets the allocator for arrays the store builds itself
// (builders, concatenated columns).
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Store) { s.mem = mem }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithObserver attaches a metrics observer to every registry and to format
// detection.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithStrictSniffing makes advisory detection warnings fail Decode.
func WithStrictSniffing(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithExtensions sets the extension registry consulted by
// ValidateExtensions.
func WithExtensions(r *extension.Registry) Option {
	return func(s *Store) { s.extensions = r }
}

// Store owns the handle registries of one host session.
type Store struct {
	tables   *handle.Registry[*table.Table]
	schemas  *handle.Registry[*arrow.Schema]
	builders *handle.Registry[*columnBuilder]

	engine     engine.DataEngine
	mem        memory.Allocator
	logger     *zap.Logger
	observer   Observer
	strict     bool
	extensions *extension.Registry
}

// NewStore creates a store with empty registries.
func NewStore(opts ...Option) *Store {
	s := &Store{mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrGlobal(s.logger).With(zap.String("component", "store"))
	if s.engine == nil {
		s.engine = engine.New(engine.WithAllocator(s.mem), engine.WithLogger(s.logger))
	}
	if s.extensions == nil {
		s.extensions = extension.NewRegistry(s.logger)
	}

	var obs handle.Observer
	if s.observer != nil {
		obs = s.observer
	}

	s.tables = handle.New(handle.KindTable,
		handle.WithReleaseFunc(func(t *table.Table) { t.Release() }),
		handle.WithObserver[*table.Table](obs),
		handle.WithLogger[*table.Table](s.logger))
	s.schemas = handle.New(handle.KindSchema,
		handle.WithObserver[*arrow.Schema](obs),
		handle.WithLogger[*arrow.Schema](s.logger))
	s.builders = handle.New(handle.KindBuilder,
		handle.WithReleaseFunc(func(b *columnBuilder) { b.release() }),
		handle.WithObserver[*columnBuilder](obs),
		handle.WithLogger[*columnBuilder](s.logger))
	return s
}

// Engine returns the engine behind the store.
func (s *Store) Engine() engine.DataEngine { return s.engine }

// Extensions returns the extension registry.
func (s *Store) Extensions() *extension.Registry { return s.extensions }

// withTable resolves h, runs fn with the table and drops the reference.
// The registry lock is not held while fn runs.
func (s *Store) withTable(h handle.Handle, fn func(*table.Table) error) error {
	res, err := s.tables.Lookup(h)
	if err != nil {
		return err
	}
	defer res.Release()
	return fn(res.Value())
}

// insertTable registers t and takes over the caller's reference. On error
// t is released.
func (s *Store) insertTable(t *table.Table) (handle.Handle, error) {
	h, err := s.tables.Insert(t, handle.WithMetadata(t.Metadata()))
	if err != nil {
		t.Release()
		return handle.Invalid, err
	}
	return h, nil
}

// IsValid reports whether h is a live table handle.
func (s *Store) IsValid(h handle.Handle) bool {
	return s.tables.Contains(h)
}

// TableCount returns the number of live tables.
func (s *Store) TableCount() int {
	return s.tables.Len()
}

// HandleStats counts live handles per kind.
type HandleStats struct {
	Tables   int `json:"tables"`
	Schemas  int `json:"schemas"`
	Builders int `json:"builders"`
}

// HandleStats returns live handle counts.
func (s *Store) HandleStats() HandleStats {
	return HandleStats{
		Tables:   s.tables.Len(),
		Schemas:  s.schemas.Len(),
		Builders: s.builders.Len(),
	}
}

// MemoryStats summarizes the tables a store holds.
type MemoryStats struct {
	ActiveTables int   `json:"active_tables"`
	TotalRows    int64 `json:"total_rows"`
	TotalBatches int   `json:"total_batches"`
	// ProcessRSS is the resident set size of the whole process, 0 when it
	// cannot be read
	ProcessRSS uint64 `json:"process_rss"`
}

// MemoryStats walks the live tables.
func (s *Store) MemoryStats(ctx context.Context) MemoryStats {
	var st MemoryStats
	s.tables.Each(func(res *handle.Resource[*table.Table]) bool {
		t := res.Value()
		st.ActiveTables++
		st.TotalRows += t.NumRows()
		st.TotalBatches += t.NumBatches()
		return true
	})

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits
	if err == nil {
		var mi *process.MemoryInfoStat
		if mi, err = p.MemoryInfoWithContext(ctx); err == nil {
			st.ProcessRSS = mi.RSS
		}
	}
	if err != nil {
		s.logger.Debug("process memory unavailable", zap.Error(err))
	}
	return st
}

// ClearAll frees every handle of every kind and returns how many there
// were. Handle counters are not reset.
func (s *Store) ClearAll() int {
	n := s.tables.Clear() + s.schemas.Clear() + s.builders.Clear()
	s.logger.Debug("store cleared", zap.Int("handles", n))
	return n
}
