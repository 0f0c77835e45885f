package dispatch

import (
	"fmt"
	"sort"
	"sync"
)

type registration struct {
	typeName string
	factory  Factory
}

// Registry maps handler modules to factories. Fill it at startup.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]registration{}}
}

// Register adds a factory under module and type name.
func (r *Registry) Register(module, typeName string, f Factory) error {
	if module == "" || typeName == "" {
		return fmt.Errorf("module and type name are required")
	}
	if f == nil {
		return fmt.Errorf("factory for %s is nil", module)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[module]; exists {
		return fmt.Errorf("module %s already registered", module)
	}
	r.modules[module] = registration{typeName: typeName, factory: f}
	return nil
}

// Reader registers the GET handler for identifier.
func (r *Registry) Reader(identifier string, f Factory) error {
	d := Describe("GET", identifier)
	return r.Register(d.Module, d.TypeName, f)
}

// Mutator registers the handler for identifier under a POST, PUT or DELETE verb.
func (r *Registry) Mutator(identifier, verb string, f Factory) error {
	d := Describe(verb, identifier)
	if !d.Mutator {
		return fmt.Errorf("%s is not a mutating verb", verb)
	}
	return r.Register(d.Module, d.TypeName, f)
}

// Lookup returns the factory for d. The registered type name must match.
func (r *Registry) Lookup(d Descriptor) (Factory, bool) {
	if !d.Resolvable() {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.modules[d.Module]
	if !ok || reg.typeName != d.TypeName {
		return nil, false
	}
	return reg.factory, true
}

// Modules lists registered modules in sorted order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modules))
	for m := range r.modules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
