// Package forms builds prefilled URLs for third-party form services.
//
// Providers differ only in how a field key is spelled and where the form is
// submitted; the query is extended with the same append-only rule the link
// composer uses. Values are never obfuscated here because the form service
// has to read them.
package forms

import (
	"net/url"
	"strings"

	"github.com/conneroisu/paramtrail/internal/compose"
	"github.com/conneroisu/paramtrail/internal/metrics"
	"github.com/conneroisu/paramtrail/internal/params"
)

// Provider describes a form service's URL conventions.
type Provider interface {
	Name() string
	// FieldKey returns the query key for a caller-supplied field key.
	FieldKey(field string) string
	// SubmissionURL rewrites base to the provider's prefill endpoint.
	SubmissionURL(base string) string
}

// GoogleForms prefixes bare field IDs with "entry." and points the URL at
// the form's /viewform page.
type GoogleForms struct{}

const (
	googleFieldPrefix = "entry."
	googleViewPath    = "/viewform"
)

func (GoogleForms) Name() string { return "google" }

func (GoogleForms) FieldKey(field string) string {
	if strings.HasPrefix(field, googleFieldPrefix) {
		return field
	}
	return googleFieldPrefix + field
}

func (GoogleForms) SubmissionURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, googleViewPath) {
		return base
	}
	u.Path = path + googleViewPath
	u.RawPath = ""
	return u.String()
}

// Plain emits bare key=value pairs and leaves the URL alone.
type Plain struct{}

func (Plain) Name() string                     { return "plain" }
func (Plain) FieldKey(field string) string     { return field }
func (Plain) SubmissionURL(base string) string { return base }

// ProviderByName resolves a configured provider name.
func ProviderByName(name string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google", "googleforms", "google_forms":
		return GoogleForms{}, true
	case "", "plain", "generic":
		return Plain{}, true
	}
	return nil, false
}

// Prefill applies provider's key spelling to fields and appends them to the
// provider's submission URL for base.
func Prefill(provider Provider, base string, fields []compose.Pair) string {
	out := make([]compose.Pair, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		out = append(out, compose.Pair{Name: provider.FieldKey(f.Name), Value: f.Value})
	}
	return compose.AppendQuery(provider.SubmissionURL(base), out)
}

// FieldMapping binds a form field to a tracked parameter.
type FieldMapping struct {
	Field     string
	Parameter string
}

// Form is a configured third-party form.
type Form struct {
	Name     string
	Provider Provider
	URL      string
	Fields   []FieldMapping
}

// Builder fills forms from session values.
type Builder struct {
	source  *params.Source
	metrics *metrics.Metrics
}

// NewBuilder returns a Builder. m may be nil.
func NewBuilder(source *params.Source, m *metrics.Metrics) *Builder {
	return &Builder{source: source, metrics: m}
}

// Build returns form's prefilled URL. Mappings to untracked parameters are
// dropped; a missing session value falls back to the parameter's fallback
// and is left out if still empty.
func (b *Builder) Build(form Form, store compose.Getter) string {
	provider := form.Provider
	if provider == nil {
		provider = Plain{}
	}
	reg := b.source.Current()

	fields := make([]compose.Pair, 0, len(form.Fields))
	dropped := 0
	for _, m := range form.Fields {
		p, ok := reg.Lookup(m.Parameter)
		if !ok {
			dropped++
			continue
		}
		value := p.Fallback
		if store != nil {
			value = store.Get(p.Name, p.Fallback)
		}
		if value == "" {
			continue
		}
		fields = append(fields, compose.Pair{Name: m.Field, Value: value})
	}

	b.metrics.Dropped("form", dropped)
	b.metrics.Composed("form")

	return Prefill(provider, form.URL, fields)
}
