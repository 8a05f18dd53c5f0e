package extension

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/logger"
)

// Info describes an enabled extension.
type Info struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Version string `json:"version"`
}

// Registry tracks which extensions are enabled.
type Registry struct {
	mu      sync.RWMutex
	enabled map[Kind]struct{}
	logger  *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger uses the global one.
func NewRegistry(l *zap.Logger) *Registry {
	return &Registry{
		enabled: make(map[Kind]struct{}),
		logger:  logger.OrGlobal(l).With(zap.String("component", "extension_registry")),
	}
}

// Enable turns k on. Enabling an extension twice is an error.
func (r *Registry) Enable(k Kind) error {
	if k < Geometry || k > Demo {
		return errors.Validation("unknown extension %s", k)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enabled[k]; exists {
		return errors.Validation("extension '%s' is already enabled", k.ID())
	}
	r.enabled[k] = struct{}{}
	r.logger.Info("extension enabled", zap.String("id", k.ID()))
	return nil
}

// EnableID parses id and enables the kind it names.
func (r *Registry) EnableID(id string) (Kind, error) {
	k, err := ParseKind(id)
	if err != nil {
		return 0, err
	}
	return k, r.Enable(k)
}

// Disable turns k off.
func (r *Registry) Disable(k Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enabled[k]; !exists {
		return errors.Validation("extension '%s' is not enabled", k.ID())
	}
	delete(r.enabled, k)
	return nil
}

// IsEnabled reports whether k is on.
func (r *Registry) IsEnabled(k Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.enabled[k]
	return ok
}

// Enabled returns the enabled kinds in Kind order.
func (r *Registry) Enabled() []Kind {
	r.mu.RLock()
	kinds := make([]Kind, 0, len(r.enabled))
	for k := range r.enabled {
		kinds = append(kinds, k)
	}
	r.mu.RUnlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// List describes the enabled extensions.
func (r *Registry) List() []Info {
	kinds := r.Enabled()
	out := make([]Info, len(kinds))
	for i, k := range kinds {
		out[i] = Info{ID: k.ID(), Kind: k.String(), Version: k.Version()}
	}
	return out
}

// Clear disables everything.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = make(map[Kind]struct{})
}
