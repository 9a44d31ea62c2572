package worker

import (
	"context"
	"sync"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

// Handler executes one job. The context carries the run ID and is
// cancelled when the job timeout elapses or the pool shuts down, so
// handlers doing slow work must watch it.
type Handler func(ctx context.Context, job bifrost.Job) error

// Registry maps job kinds to their handlers. Safe for concurrent use,
// though registration normally happens once before the pool starts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[bifrost.Kind]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[bifrost.Kind]Handler),
	}
}

// Register installs the handler for a kind, replacing any previous one.
func (r *Registry) Register(kind bifrost.Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Get returns the handler for a kind.
func (r *Registry) Get(kind bifrost.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the kinds with a registered handler.
func (r *Registry) Kinds() []bifrost.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]bifrost.Kind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Missing returns the job kinds that have no registered handler. An
// empty result means every kind the queue can hold is executable.
func (r *Registry) Missing() []bifrost.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []bifrost.Kind
	for _, kind := range bifrost.Kinds() {
		if _, ok := r.handlers[kind]; !ok {
			missing = append(missing, kind)
		}
	}
	return missing
}
