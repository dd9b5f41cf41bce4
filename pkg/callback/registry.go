package callback

import "sync"

// Entry is what a correlation id resolves to. Primary is a ResponseCallback
// or a ForwardCallback; Secondary is only set for forwards that asked for an
// after-forward step.
type Entry struct {
	Primary   any
	Secondary ForwardResponseCallback
}

// Registry maps correlation ids to registered handlers. It is safe for
// concurrent use; handlers are never invoked while its lock is held.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register stores the handlers for id, replacing any previous entry.
func (r *Registry) Register(id string, primary any, secondary ForwardResponseCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = Entry{Primary: primary, Secondary: secondary}
}

// Resolve returns the handlers registered for id.
func (r *Registry) Resolve(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Unregister removes id. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
