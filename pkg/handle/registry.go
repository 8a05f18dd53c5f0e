package handle

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// Handle is an opaque reference to a registry entry. Zero is never issued.
type Handle uint32

// Invalid is the reserved null handle.
const Invalid Handle = 0

// Kind names the resource namespace a registry serves.
type Kind string

const (
	KindTable   Kind = "table"
	KindSchema  Kind = "schema"
	KindBuilder Kind = "builder"
)

// Observer receives registry events. pkg/metrics provides the production
// implementation; nil disables reporting.
type Observer interface {
	HandleOp(kind Kind, op string)
	LiveHandles(kind Kind, n int)
}

// Resource is a registry entry: one shared value plus bookkeeping. The
// registry owns one reference; every successful Get adds another that the
// caller must drop with Release.
type Resource[T any] struct {
	value     T
	handle    Handle
	createdAt time.Time
	metadata  map[string]string
	refs      atomic.Int64
	onRelease func(T)
}

// Value returns the wrapped value.
func (r *Resource[T]) Value() T { return r.value }

// Handle returns the id the resource was registered under.
func (r *Resource[T]) Handle() Handle { return r.handle }

// CreatedAt returns the registration time.
func (r *Resource[T]) CreatedAt() time.Time { return r.createdAt }

// Metadata returns a copy of the resource metadata.
func (r *Resource[T]) Metadata() map[string]string {
	out := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// Retain adds a reference.
func (r *Resource[T]) Retain() {
	r.refs.Add(1)
}

// Release drops a reference. The release hook runs when the count reaches
// zero, which happens only after the entry has been removed from its registry.
func (r *Resource[T]) Release() {
	n := r.refs.Add(-1)
	if n < 0 {
		panic("handle: resource released more times than retained")
	}
	if n == 0 && r.onRelease != nil {
		r.onRelease(r.value)
	}
}

// RefCount reports the current reference count.
func (r *Resource[T]) RefCount() int64 {
	return r.refs.Load()
}

// Option configures a Registry.
type Option[T any] func(*Registry[T])

// WithReleaseFunc sets the hook run when a removed resource's last reference
// is dropped.
func WithReleaseFunc[T any](fn func(T)) Option[T] {
	return func(r *Registry[T]) { r.onRelease = fn }
}

// WithObserver attaches an event observer.
func WithObserver[T any](o Observer) Option[T] {
	return func(r *Registry[T]) { r.observer = o }
}

// WithLogger sets the registry logger.
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(r *Registry[T]) { r.logger = l }
}

// withStartID is used by tests to exercise handle-space exhaustion.
func withStartID[T any](id uint32) Option[T] {
	return func(r *Registry[T]) { r.next = id }
}

// InsertOption configures a single Insert.
type InsertOption func(*insertConfig)

type insertConfig struct {
	metadata map[string]string
}

// WithMetadata attaches string metadata to the inserted resource.
func WithMetadata(md map[string]string) InsertOption {
	return func(c *insertConfig) {
		if len(md) == 0 {
			return
		}
		if c.metadata == nil {
			c.metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			c.metadata[k] = v
		}
	}
}

// Registry maps handles to shared resources of one kind. All operations are
// serialized by a single mutex; release hooks and observer callbacks run
// after it is dropped.
type Registry[T any] struct {
	mu        sync.Mutex
	kind      Kind
	next      uint32
	exhausted bool
	entries   map[Handle]*Resource[T]

	onRelease func(T)
	observer  Observer
	logger    *zap.Logger
}

// New creates an empty registry for the given kind.
func New[T any](kind Kind, opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{
		kind:    kind,
		next:    1,
		entries: make(map[Handle]*Resource[T]),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("registry", string(kind)))
	return r
}

// Kind returns the namespace this registry serves.
func (r *Registry[T]) Kind() Kind { return r.kind }

// Insert registers v and returns its handle. Handles increase monotonically
// and are never reissued; once the 32-bit space is spent Insert fails with a
// memory error rather than wrapping around.
func (r *Registry[T]) Insert(v T, opts ...InsertOption) (Handle, error) {
	var cfg insertConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	res := &Resource[T]{
		value:     v,
		createdAt: time.Now(),
		metadata:  cfg.metadata,
		onRelease: r.onRelease,
	}
	res.refs.Store(1)

	r.mu.Lock()
	if r.exhausted {
		r.mu.Unlock()
		return Invalid, errors.Newf(errors.CodeMemory, "%s handle space exhausted", r.kind)
	}
	h := Handle(r.next)
	if r.next == math.MaxUint32 {
		r.exhausted = true
	} else {
		r.next++
	}
	res.handle = h
	r.entries[h] = res
	r.report("insert", len(r.entries))
	r.mu.Unlock()

	r.logger.Debug("handle registered", zap.Uint32("handle", uint32(h)))
	return h, nil
}

// Get returns a retained reference to the resource behind h. The caller must
// call Release on it. Unknown, reserved and freed handles report false.
func (r *Registry[T]) Get(h Handle) (*Resource[T], bool) {
	if h == Invalid {
		return nil, false
	}

	r.mu.Lock()
	res, ok := r.entries[h]
	if ok {
		res.Retain()
	}
	r.mu.Unlock()

	return res, ok
}

// Lookup is Get with a typed invalid-handle error for the miss case.
func (r *Registry[T]) Lookup(h Handle) (*Resource[T], error) {
	res, ok := r.Get(h)
	if !ok {
		return nil, errors.InvalidHandle(string(r.kind), uint32(h))
	}
	return res, nil
}

// Remove unregisters h and hands the registry's reference to the caller,
// who must Release it.
func (r *Registry[T]) Remove(h Handle) (*Resource[T], bool) {
	r.mu.Lock()
	res, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
		r.report("remove", len(r.entries))
	}
	r.mu.Unlock()

	if ok {
		r.logger.Debug("handle removed", zap.Uint32("handle", uint32(h)))
	}
	return res, ok
}

// Free removes h and drops the registry's reference in one step.
func (r *Registry[T]) Free(h Handle) error {
	res, ok := r.Remove(h)
	if !ok {
		return errors.InvalidHandle(string(r.kind), uint32(h))
	}
	res.Release()
	return nil
}

// Contains reports whether h currently resolves.
func (r *Registry[T]) Contains(h Handle) bool {
	r.mu.Lock()
	_, ok := r.entries[h]
	r.mu.Unlock()
	return ok
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Handles returns the live handles in ascending order.
func (r *Registry[T]) Handles() []Handle {
	r.mu.Lock()
	out := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each calls fn with a retained reference to every live resource, in handle
// order. fn runs without the registry lock held, so it may call back into
// the registry.
func (r *Registry[T]) Each(fn func(*Resource[T]) bool) {
	r.mu.Lock()
	snapshot := make([]*Resource[T], 0, len(r.entries))
	for _, res := range r.entries {
		res.Retain()
		snapshot = append(snapshot, res)
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].handle < snapshot[j].handle })

	stopped := false
	for _, res := range snapshot {
		if !stopped && !fn(res) {
			stopped = true
		}
		res.Release()
	}
}

// Clear removes every entry and drops the registry's references. The handle
// counter is not reset, so cleared handles are never reissued.
func (r *Registry[T]) Clear() int {
	r.mu.Lock()
	old := r.entries
	r.entries = make(map[Handle]*Resource[T])
	r.report("clear", 0)
	r.mu.Unlock()

	for _, res := range old {
		res.Release()
	}
	return len(old)
}

// report publishes live under r.mu so concurrent inserts and removes reach
// the observer in the order they changed the map.
func (r *Registry[T]) report(op string, live int) {
	if r.observer == nil {
		return
	}
	r.observer.HandleOp(r.kind, op)
	r.observer.LiveHandles(r.kind, live)
}
