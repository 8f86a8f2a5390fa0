package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// JSONCapability serves values as JSON for client-side hosts.
type JSONCapability struct {
	mu  sync.RWMutex
	src ParameterSource
}

// NewJSONCapability returns the JSON API host adapter.
func NewJSONCapability() *JSONCapability {
	return &JSONCapability{}
}

func (c *JSONCapability) Name() string { return "jsonapi" }

func (c *JSONCapability) Available() bool { return true }

func (c *JSONCapability) RegisterParameterSource(src ParameterSource) error {
	if src == nil {
		return ErrNoSource
	}
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
	return nil
}

func (c *JSONCapability) source() ParameterSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.src
}

// RenderParameterValue returns the value as a JSON string literal.
func (c *JSONCapability) RenderParameterValue(ctx context.Context, name, def string) (string, error) {
	src := c.source()
	if src == nil {
		return "", ErrNoSource
	}
	b, err := json.Marshal(src.Value(ctx, name, def))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParamsResponse is the body of GET /api/params.
type ParamsResponse struct {
	Parameters map[string]string `json:"parameters"`
}

// ServeHTTP writes every tracked parameter's effective value for the
// request's session.
func (c *JSONCapability) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	src := c.source()
	if src == nil {
		http.Error(w, ErrNoSource.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(ParamsResponse{Parameters: src.Values(r.Context())}); err != nil {
		http.Error(w, "failed to encode parameters", http.StatusInternalServerError)
	}
}
