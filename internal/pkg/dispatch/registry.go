package dispatch

import (
	"fmt"
	"sync"
)

// Registry maps task names to handlers. It is constructed once at
// startup and passed to the dispatcher by reference; there is no
// process-wide default.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a task name. Re-registering a name
// replaces the previous handler.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for %q must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	return nil
}

// RegisterFunc binds a HandlerFunc to a task name
func (r *Registry) RegisterFunc(name string, fn HandlerFunc) error {
	return r.Register(name, fn)
}

// Resolve returns the handler bound to name
func (r *Registry) Resolve(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered task names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
