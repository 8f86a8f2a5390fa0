package integration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/a-h/templ"
)

// ErrNoSource is returned when a capability renders before it has a source.
var ErrNoSource = errors.New("no parameter source registered")

// TemplCapability exposes values as templ components for server-rendered
// pages.
type TemplCapability struct {
	mu  sync.RWMutex
	src ParameterSource
}

// NewTemplCapability returns the templ host adapter.
func NewTemplCapability() *TemplCapability {
	return &TemplCapability{}
}

func (c *TemplCapability) Name() string { return "templ" }

// Available is always true; templ is compiled in.
func (c *TemplCapability) Available() bool { return true }

func (c *TemplCapability) RegisterParameterSource(src ParameterSource) error {
	if src == nil {
		return ErrNoSource
	}
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
	return nil
}

// Component renders the escaped value of name.
func (c *TemplCapability) Component(name, def string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		c.mu.RLock()
		src := c.src
		c.mu.RUnlock()
		if src == nil {
			return ErrNoSource
		}
		_, err := io.WriteString(w, templ.EscapeString(src.Value(ctx, name, def)))
		return err
	})
}

// RenderParameterValue returns the value as escaped HTML.
func (c *TemplCapability) RenderParameterValue(ctx context.Context, name, def string) (string, error) {
	var buf bytes.Buffer
	if err := c.Component(name, def).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
