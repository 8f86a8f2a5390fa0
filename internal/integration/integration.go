// Package integration connects paramtrail to host environments. A host
// (a template engine, an HTTP API, a page builder) is represented by a
// Capability that is told where parameter values come from and can render
// one value in the host's own format.
package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/paramtrail/internal/logging"
	"github.com/conneroisu/paramtrail/internal/params"
	"github.com/conneroisu/paramtrail/internal/render"
	"github.com/conneroisu/paramtrail/internal/session"
)

// ParameterSource is how capabilities read tracked values.
type ParameterSource interface {
	// Parameters returns the tracked parameters in configured order.
	Parameters() []params.TrackedParameter

	// Value returns the session value of name for the request carried by
	// ctx, falling back to def and then to the parameter's fallback.
	Value(ctx context.Context, name, def string) string

	// Values returns every tracked parameter's effective value.
	Values(ctx context.Context) map[string]string
}

// Capability is a host integration.
type Capability interface {
	// Name returns the unique name of the capability
	Name() string

	// Available reports whether the host is present and usable.
	Available() bool

	// RegisterParameterSource hands the capability its value source.
	RegisterParameterSource(src ParameterSource) error

	// RenderParameterValue renders one value in the host's format.
	RenderParameterValue(ctx context.Context, name, def string) (string, error)
}

// SessionSource reads values from the session store in the request context.
type SessionSource struct {
	source   *params.Source
	renderer *render.Renderer
}

// NewSessionSource returns a ParameterSource over the current registry.
func NewSessionSource(source *params.Source, renderer *render.Renderer) *SessionSource {
	return &SessionSource{source: source, renderer: renderer}
}

// Parameters returns the tracked parameters.
func (s *SessionSource) Parameters() []params.TrackedParameter {
	return s.source.Current().Parameters()
}

// Value returns the effective value of name.
func (s *SessionSource) Value(ctx context.Context, name, def string) string {
	if store, ok := session.FromContext(ctx); ok {
		return s.renderer.ValueString(store, name, def)
	}
	return s.renderer.ValueString(nil, name, def)
}

// Values returns the effective value of every tracked parameter.
func (s *SessionSource) Values(ctx context.Context) map[string]string {
	tracked := s.Parameters()
	out := make(map[string]string, len(tracked))
	for _, p := range tracked {
		out[p.Name] = s.Value(ctx, p.Name, "")
	}
	return out
}

// Hub keeps the known capabilities and attaches a source to the ones
// that are available.
type Hub struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	logger       logging.Logger
}

// NewHub creates an empty Hub. logger may be nil.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		capabilities: make(map[string]Capability),
		logger:       logger.WithComponent("integration"),
	}
}

// Register adds a capability. Names must be unique.
func (h *Hub) Register(c Capability) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.capabilities[c.Name()]; exists {
		return fmt.Errorf("capability %s already registered", c.Name())
	}
	h.capabilities[c.Name()] = c
	return nil
}

// Get returns the capability registered as name.
func (h *Hub) Get(name string) (Capability, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.capabilities[name]
	return c, ok
}

// Available returns the names of available capabilities, sorted.
func (h *Hub) Available() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.capabilities))
	for name, c := range h.capabilities {
		if c.Available() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Attach registers src with every available capability. Capabilities that
// are unavailable are skipped; a registration failure is logged and the
// remaining capabilities are still attached.
func (h *Hub) Attach(ctx context.Context, src ParameterSource) int {
	attached := 0
	for _, name := range h.Available() {
		c, _ := h.Get(name)
		if err := c.RegisterParameterSource(src); err != nil {
			h.logger.Warn(ctx, err, "Capability rejected parameter source", "capability", name)
			continue
		}
		h.logger.Debug(ctx, "Capability attached", "capability", name)
		attached++
	}
	return attached
}

// Render renders name through the named capability.
func (h *Hub) Render(ctx context.Context, capability, name, def string) (string, error) {
	c, ok := h.Get(capability)
	if !ok {
		return "", fmt.Errorf("capability %s not registered", capability)
	}
	if !c.Available() {
		return "", fmt.Errorf("capability %s not available", capability)
	}
	return c.RenderParameterValue(ctx, name, def)
}
