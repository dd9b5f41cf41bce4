package callback

import (
	"fmt"
	"sync"
)

// Factory builds a fresh callback instance.
type Factory func() any

// ClassResolver maps callback class names to factories registered at
// startup. Expectations naming a class resolve through it.
type ClassResolver struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewClassResolver creates an empty resolver.
func NewClassResolver() *ClassResolver {
	return &ClassResolver{factories: make(map[string]Factory)}
}

// Register binds name to factory, replacing any previous binding.
func (r *ClassResolver) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Len returns the number of registered classes.
func (r *ClassResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Resolve builds an instance of the named class.
func (r *ClassResolver) Resolve(name string) (any, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return factory(), nil
}

// ResolveResponse builds the named class as a ResponseCallback.
func (r *ClassResolver) ResolveResponse(name string) (ResponseCallback, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	cb, ok := v.(ResponseCallback)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a response callback", ErrUnsupportedCallback, name)
	}
	return cb, nil
}

// ResolveForward builds the named class as a ForwardCallback.
func (r *ClassResolver) ResolveForward(name string) (ForwardCallback, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	cb, ok := v.(ForwardCallback)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a forward callback", ErrUnsupportedCallback, name)
	}
	return cb, nil
}
