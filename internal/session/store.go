// Package session keeps captured parameter values for the lifetime of a
// visitor's browsing session.
//
// Store is the per-session mapping from canonical parameter name to value.
// Manager is the host session mechanism: it issues the session cookie, owns
// expiry, and hands each request its Store through the request context.
package session

import (
	"context"
	"sync"
)

// Store maps canonical parameter names to captured values. Keys are never
// aliases; alias resolution happens before Set is called.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value stored under name, or def verbatim when absent.
func (s *Store) Get(name, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[name]; ok {
		return v
	}
	return def
}

// Lookup reports whether name holds a value.
func (s *Store) Lookup(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// All returns a copy of every stored value.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Set stores value under name, replacing any previous value. Set does not
// sanitize; callers outside the capture pipeline must do so first.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Len returns the number of stored values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

type contextKey struct{}

// ContextKey is the request-context key under which Manager.Middleware
// places the session Store.
var ContextKey = contextKey{}

// WithStore returns ctx carrying store.
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, ContextKey, store)
}

// FromContext returns the Store attached to ctx, if any.
func FromContext(ctx context.Context) (*Store, bool) {
	store, ok := ctx.Value(ContextKey).(*Store)
	return store, ok && store != nil
}
