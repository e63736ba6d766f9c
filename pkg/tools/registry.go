// Package tools manages the function-calling surface of a live
// session: a registry of named handlers and a concurrent orchestrator
// that executes server-issued calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sonacove/livebridge/pkg/wire"
)

// Handler executes one function call. args is the raw JSON argument
// object, already validated against the declared schema. The returned
// value is serialized as the response payload.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Declaration describes one registered function.
type Declaration struct {
	Name        string
	Description string
	Parameters  *wire.Schema
}

type registration struct {
	decl    Declaration
	handler Handler
}

// Registry holds the functions a session exposes to the server.
// Registration happens before the session starts; lookups are
// concurrent-safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a function. Names must be unique.
func (r *Registry) Register(decl Declaration, h Handler) error {
	if decl.Name == "" {
		return fmt.Errorf("tools: declaration name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("tools: handler for %q must not be nil", decl.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[decl.Name]; exists {
		return fmt.Errorf("tools: function %q already registered", decl.Name)
	}
	r.entries[decl.Name] = registration{decl: decl, handler: h}
	return nil
}

// Lookup returns the handler and declaration for name.
func (r *Registry) Lookup(name string) (Declaration, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg.decl, reg.handler, ok
}

// Len reports the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Declarations returns the wire-format function declarations, sorted
// by name for stable setup payloads.
func (r *Registry) Declarations() []wire.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := make([]wire.FunctionDeclaration, 0, len(r.entries))
	for _, reg := range r.entries {
		decls = append(decls, wire.FunctionDeclaration{
			Name:        reg.decl.Name,
			Description: reg.decl.Description,
			Parameters:  reg.decl.Parameters,
		})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}
