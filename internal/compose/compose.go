// Package compose builds outbound URLs carrying tracked parameters.
//
// Composition only ever appends: the base URL's existing query is left
// byte-for-byte intact, a separator is never doubled, and a fragment stays
// at the end of the result.
package compose

import (
	"net/url"
	"strings"

	"github.com/conneroisu/paramtrail/internal/codec"
	"github.com/conneroisu/paramtrail/internal/metrics"
	"github.com/conneroisu/paramtrail/internal/params"
)

// Pair is one logical name/value to append.
type Pair struct {
	Name  string
	Value string
}

// Getter is the read side of a session store.
type Getter interface {
	Get(name, def string) string
}

// Composer appends tracked parameters to URLs.
type Composer struct {
	source  *params.Source
	metrics *metrics.Metrics
}

// New returns a Composer reading the registry from source. m may be nil.
func New(source *params.Source, m *metrics.Metrics) *Composer {
	return &Composer{source: source, metrics: m}
}

// Compose appends pairs to base. Pairs whose name is not a tracked canonical
// name are dropped. Each retained pair is emitted under the parameter's
// short alias when it has one, with its value obfuscated when enabled.
func (c *Composer) Compose(base string, pairs []Pair) string {
	reg := c.source.Current()

	out := make([]Pair, 0, len(pairs))
	for _, pair := range pairs {
		p, ok := reg.Lookup(pair.Name)
		if !ok {
			continue
		}
		value := pair.Value
		if reg.ObfuscationEnabled() {
			value = codec.Encode(value, reg.SecretKey())
		}
		out = append(out, Pair{Name: p.Key(), Value: value})
	}

	c.metrics.Dropped("link", len(pairs)-len(out))
	if len(out) == 0 {
		return base
	}
	c.metrics.Composed("link")

	return AppendQuery(base, out)
}

// FromStore composes base with values read from store. With no names, every
// tracked parameter is considered in configured order. A parameter missing
// from the store uses its fallback; one still empty is left out.
func (c *Composer) FromStore(base string, store Getter, names ...string) string {
	return c.Compose(base, c.Pairs(store, names...))
}

// Pairs collects the pairs FromStore would append.
func (c *Composer) Pairs(store Getter, names ...string) []Pair {
	reg := c.source.Current()
	if len(names) == 0 {
		for _, p := range reg.Parameters() {
			names = append(names, p.Name)
		}
	}

	pairs := make([]Pair, 0, len(names))
	for _, name := range names {
		p, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		value := p.Fallback
		if store != nil {
			value = store.Get(name, p.Fallback)
		}
		if value == "" {
			continue
		}
		pairs = append(pairs, Pair{Name: name, Value: value})
	}
	return pairs
}

// AppendQuery appends pairs to base as escaped key=value items. It is the
// shared append rule for links and third-party form URLs.
//
// Separators are found textually, so a base that url.Parse rejects still
// keeps its query and fragment intact.
func AppendQuery(base string, pairs []Pair) string {
	if len(pairs) == 0 {
		return base
	}

	head, fragment, hasQuery := split(base)

	var b strings.Builder
	b.Grow(len(base) + len(pairs)*16)
	b.WriteString(head)
	switch {
	case !hasQuery:
		b.WriteByte('?')
	case strings.HasSuffix(head, "?"), strings.HasSuffix(head, "&"):
		// already ends in a separator
	default:
		b.WriteByte('&')
	}

	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value))
	}
	b.WriteString(fragment)

	return b.String()
}

func split(base string) (head, fragment string, hasQuery bool) {
	head = base
	if i := strings.IndexByte(base, '#'); i >= 0 {
		head, fragment = base[:i], base[i:]
	}
	return head, fragment, strings.Contains(head, "?")
}
