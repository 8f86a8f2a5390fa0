// Package params holds the tracked-parameter configuration and the lookup
// tables derived from it.
//
// A Registry is immutable once built. Source publishes the current Registry
// to request handlers and lets a config reload replace it atomically, so an
// update is visible to the next request without locking the request path.
package params

import (
	"sync/atomic"

	"github.com/conneroisu/paramtrail/internal/errors"
)

// TrackedParameter is one configured parameter.
type TrackedParameter struct {
	// Name is the canonical identifier and the session storage key.
	Name string `json:"name" yaml:"name"`
	// ShortAlias is an optional shorter public key mapped onto Name.
	ShortAlias string `json:"short,omitempty" yaml:"short,omitempty"`
	// Fallback is used by consumers when the session holds no value.
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	// RedirectURL is opaque to the core; the /go/ handler redirects to it.
	RedirectURL string `json:"redirect_url,omitempty" yaml:"redirect_url,omitempty"`
}

// Key returns the key emitted in generated URLs: the alias when present.
func (p TrackedParameter) Key() string {
	if p.ShortAlias != "" {
		return p.ShortAlias
	}
	return p.Name
}

// Obfuscation configures the value codec.
type Obfuscation struct {
	Enabled   bool
	SecretKey string
}

// Registry maps incoming query keys onto canonical parameter names.
type Registry struct {
	parameters  []TrackedParameter
	byName      map[string]int
	incoming    map[string]string
	incomingSeq []string
	obfuscation Obfuscation
}

// NewRegistry builds a registry, rejecting configurations where an alias or
// name is claimed twice.
func NewRegistry(list []TrackedParameter, obfuscation Obfuscation) (*Registry, error) {
	if err := Validate(list); err != nil {
		return nil, err
	}
	return build(list, obfuscation), nil
}

// NewRegistryLenient builds a registry without collision checks. When two
// entries claim the same incoming key, the one registered last wins.
func NewRegistryLenient(list []TrackedParameter, obfuscation Obfuscation) *Registry {
	return build(list, obfuscation)
}

// Empty returns a registry tracking nothing.
func Empty() *Registry {
	return build(nil, Obfuscation{})
}

// Validate checks names and aliases for emptiness and collisions.
func Validate(list []TrackedParameter) error {
	names := make(map[string]bool, len(list))
	for _, p := range list {
		if p.Name == "" {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, "tracked parameter name cannot be empty")
		}
		if names[p.Name] {
			return errors.NewConfigError(errors.ErrCodeDuplicateName, "tracked parameter name is defined twice").
				WithParameter(p.Name)
		}
		names[p.Name] = true
	}

	aliases := make(map[string]string, len(list))
	for _, p := range list {
		if p.ShortAlias == "" {
			continue
		}
		if names[p.ShortAlias] && p.ShortAlias != p.Name {
			return errors.NewConfigError(errors.ErrCodeAliasCollision, "short alias equals another parameter's name").
				WithParameter(p.Name).
				WithContext("alias", p.ShortAlias)
		}
		if owner, taken := aliases[p.ShortAlias]; taken {
			return errors.NewConfigError(errors.ErrCodeAliasCollision, "short alias is used by two parameters").
				WithParameter(p.Name).
				WithContext("alias", p.ShortAlias).
				WithContext("owner", owner)
		}
		aliases[p.ShortAlias] = p.Name
	}

	return nil
}

func build(list []TrackedParameter, obfuscation Obfuscation) *Registry {
	r := &Registry{
		parameters:  make([]TrackedParameter, len(list)),
		byName:      make(map[string]int, len(list)),
		incoming:    make(map[string]string, len(list)*2),
		incomingSeq: make([]string, 0, len(list)*2),
		obfuscation: obfuscation,
	}
	copy(r.parameters, list)

	for i, p := range list {
		r.byName[p.Name] = i
		r.addIncoming(p.Name, p.Name)
		if p.ShortAlias != "" {
			r.addIncoming(p.ShortAlias, p.Name)
		}
	}

	return r
}

func (r *Registry) addIncoming(key, canonical string) {
	if _, seen := r.incoming[key]; !seen {
		r.incomingSeq = append(r.incomingSeq, key)
	}
	r.incoming[key] = canonical
}

// Resolve maps an incoming query key (name or alias) to its canonical name.
// Matching is exact and case-sensitive.
func (r *Registry) Resolve(key string) (string, bool) {
	canonical, ok := r.incoming[key]
	return canonical, ok
}

// IncomingKeys returns every key Resolve accepts, in registration order with
// each name before its alias.
func (r *Registry) IncomingKeys() []string {
	out := make([]string, len(r.incomingSeq))
	copy(out, r.incomingSeq)
	return out
}

// Parameters returns the tracked parameters in configured order.
func (r *Registry) Parameters() []TrackedParameter {
	out := make([]TrackedParameter, len(r.parameters))
	copy(out, r.parameters)
	return out
}

// Lookup finds a tracked parameter by canonical name.
func (r *Registry) Lookup(name string) (TrackedParameter, bool) {
	i, ok := r.byName[name]
	if !ok {
		return TrackedParameter{}, false
	}
	return r.parameters[i], true
}

// Len returns the number of tracked parameters.
func (r *Registry) Len() int {
	return len(r.parameters)
}

// ObfuscationEnabled reports whether values are obfuscated in URLs.
func (r *Registry) ObfuscationEnabled() bool {
	return r.obfuscation.Enabled
}

// SecretKey returns the codec key.
func (r *Registry) SecretKey() string {
	return r.obfuscation.SecretKey
}

// Source publishes the current Registry.
type Source struct {
	current atomic.Pointer[Registry]
}

// NewSource returns a Source serving r, or an empty registry if r is nil.
func NewSource(r *Registry) *Source {
	s := &Source{}
	s.Swap(r)
	return s
}

// Current returns the registry in effect for this request.
func (s *Source) Current() *Registry {
	return s.current.Load()
}

// Swap replaces the registry and returns the previous one.
func (s *Source) Swap(r *Registry) *Registry {
	if r == nil {
		r = Empty()
	}
	return s.current.Swap(r)
}
