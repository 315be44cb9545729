// internal/component/registry.go
//
// Component registry (cycle-free, explicit).
//
// Each concrete component lives under components/<name>.  cmd/web builds
// every component with its dependencies injected through a constructor and
// registers it here; nothing registers itself from init().  The registry
// then collects migrations, runs optional Init hooks, and lets each
// component attach its routes to the shared router.

package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Initializer is optional.  If a Component implements it, InitAll calls
// Init once after migrations have run.
type Initializer interface {
	Init(ctx context.Context) error
}

// Component contract.
//
// Migrations() may return nil if the component has no schema changes.
// Routes() adds BOTH page and API endpoints to r, e.g:
//
//	r.Get("/login", c.getLogin)
//	r.Route("/api", func(api chi.Router) { ... })
type Component interface {
	Name() string
	Routes(r chi.Router)
	Migrations() []string
}

// Registry keeps components in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []Component
	names map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: map[string]bool{}}
}

// Register adds c.  Duplicate names are a programming error.
func (reg *Registry) Register(c Component) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.names[c.Name()] {
		panic(fmt.Sprintf("component: %q registered twice", c.Name()))
	}
	reg.names[c.Name()] = true
	reg.order = append(reg.order, c)
}

// All returns every registered component in registration order.
func (reg *Registry) All() []Component {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]Component(nil), reg.order...)
}

// Migrations concatenates every component's statements in order.
func (reg *Registry) Migrations() []string {
	var out []string
	for _, c := range reg.All() {
		out = append(out, c.Migrations()...)
	}
	return out
}

// InitAll runs Init on every component that implements Initializer.
func (reg *Registry) InitAll(ctx context.Context) error {
	for _, c := range reg.All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(ctx); err != nil {
				return fmt.Errorf("component %s init: %w", c.Name(), err)
			}
		}
	}
	return nil
}

// Mount attaches every component's routes to r.
func (reg *Registry) Mount(r chi.Router) {
	for _, c := range reg.All() {
		c.Routes(r)
	}
}
