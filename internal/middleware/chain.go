// Package middleware holds the HTTP middleware stack shared by the
// paramtrail server.
package middleware

import (
	"fmt"
	"net/http"
)

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares. The first middleware added is the outermost:
// with [A, B, C] and handler H, a request flows A -> B -> C -> H.
type Chain struct {
	middlewares []Middleware
}

// NewChain returns a chain holding mws in order.
func NewChain(mws ...Middleware) *Chain {
	c := &Chain{middlewares: make([]Middleware, 0, len(mws))}
	for _, mw := range mws {
		c.Add(mw)
	}
	return c
}

// Add appends a middleware inside the ones already added. nil is ignored.
func (c *Chain) Add(mw Middleware) *Chain {
	if mw != nil {
		c.middlewares = append(c.middlewares, mw)
	}
	return c
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler with every middleware in the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("Chain.Apply: handler cannot be nil")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("Chain.Apply: middleware at index %d returned nil handler", i))
		}
	}
	return wrapped
}
