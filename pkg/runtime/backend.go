package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/dialect"
)

// DispatchResult resolves a backend dispatch: exactly one of Receipt or Err
// is set.
type DispatchResult struct {
	Receipt *contract.Receipt
	Err     error
}

// Backend executes work orders. Dispatch returns the live event stream and a
// one-shot receipt future; the stream always closes, with the future
// resolving at or before the close.
type Backend interface {
	ID() string
	Info() contract.BackendInfo
	Capabilities() contract.CapabilityManifest
	Dialect() dialect.Dialect
	Dispatch(ctx context.Context, runID uuid.UUID, wo contract.WorkOrder) (<-chan contract.AgentEvent, <-chan DispatchResult, error)
}

// Registry holds the named backends. It is built at runtime init and
// read-only during runs.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	priority map[string]uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: map[string]Backend{},
		priority: map[string]uint32{},
	}
}

// Register adds a backend under its id with a priority weight in [0, 100].
func (r *Registry) Register(b Backend, priority uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.ID()] = b
	r.priority[b.ID()] = priority
}

// Lookup resolves a backend by name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Priority returns a backend's registered priority.
func (r *Registry) Priority(name string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priority[name]
}

// Names returns the registered backend ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}
