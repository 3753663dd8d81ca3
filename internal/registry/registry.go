// Package registry holds the capability table: named tools and specialist
// handlers with their invocation contracts. Capabilities are registered at
// process start and looked up by name; there is no runtime dispatch beyond
// this table.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

// Tool is an external capability a handler may request. Invoke must honor
// ctx cancellation and deadlines; tools that are not idempotent receive an
// idempotency key in their args (see executor) and must dedupe retries.
type Tool interface {
	Name() string
	Idempotent() bool
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Handler is a specialist decision unit. Decide is pure aside from any
// opaque external call it wraps: given the turn-so-far it returns either a
// final output or a batch of tool requests drawn from Tools().
type Handler interface {
	Name() string
	Tools() []string
	Decide(ctx context.Context, tc *models.TurnContext) (*models.Decision, error)
}

// Registry is the thread-safe capability table.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	handlers map[string]Handler
	order    []string // handler registration order
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		handlers: make(map[string]Handler),
	}
}

// RegisterTool adds a tool. Re-registering a name replaces the entry.
func (r *Registry) RegisterTool(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// RegisterHandler adds a handler. Registration order is preserved and
// serves as the fallback priority order when the routing config does not
// define one.
func (r *Registry) RegisterHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Name()]; !exists {
		r.order = append(r.order, h.Name())
	}
	r.handlers[h.Name()] = h
}

// Tool looks up a tool by name.
func (r *Registry) Tool(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not registered", name)
	}
	return t, nil
}

// Handler looks up a handler by name.
func (r *Registry) Handler(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("handler %q not registered", name)
	}
	return h, nil
}

// Allowed reports whether the handler may request the named tool.
func (r *Registry) Allowed(handler, tool string) bool {
	h, err := r.Handler(handler)
	if err != nil {
		return false
	}
	for _, t := range h.Tools() {
		if t == tool {
			return true
		}
	}
	return false
}

// HandlerOrder returns handler names in registration order.
func (r *Registry) HandlerOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ToolNames returns registered tool names, sorted.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
