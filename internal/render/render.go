// Package render provides templ components that put session values and
// composed links into HTML. Everything written is escaped here, at the
// final render step.
package render

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/paramtrail/internal/compose"
	"github.com/conneroisu/paramtrail/internal/params"
)

// Renderer binds the registry and composer used by the components.
type Renderer struct {
	source   *params.Source
	composer *compose.Composer
}

// New returns a Renderer.
func New(source *params.Source, composer *compose.Composer) *Renderer {
	return &Renderer{source: source, composer: composer}
}

// Value renders the session value of name, or def when absent. When def is
// empty the parameter's configured fallback is used.
func (r *Renderer) Value(store compose.Getter, name, def string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(r.ValueString(store, name, def)))
		return err
	})
}

// ValueString is the unescaped text Value renders.
func (r *Renderer) ValueString(store compose.Getter, name, def string) string {
	if def == "" {
		if p, ok := r.source.Current().Lookup(name); ok {
			def = p.Fallback
		}
	}
	if store == nil {
		return def
	}
	return store.Get(name, def)
}

// Link renders an anchor to base with the session's tracked parameters
// appended. With no names, every tracked parameter is considered.
func (r *Renderer) Link(store compose.Getter, base, text string, names ...string) templ.Component {
	href := r.composer.FromStore(base, store, names...)
	return Anchor(href, text)
}

// Anchor renders <a href="href">text</a>. Unsafe URL schemes are replaced
// by templ's failed-sanitization placeholder.
func Anchor(href, text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		safe := templ.URL(href)
		_, err := io.WriteString(w, `<a href="`+templ.EscapeString(string(safe))+`">`+templ.EscapeString(text)+`</a>`)
		return err
	})
}

// HiddenFields renders one hidden input per tracked parameter holding a
// value, named by canonical name, for forms posting back to the host.
func (r *Renderer) HiddenFields(store compose.Getter) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if store == nil {
			return nil
		}
		for _, p := range r.source.Current().Parameters() {
			value := store.Get(p.Name, "")
			if value == "" {
				continue
			}
			_, err := io.WriteString(w, `<input type="hidden" name="`+templ.EscapeString(p.Name)+
				`" value="`+templ.EscapeString(value)+`">`)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
