package params

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/paramtrail/internal/errors"
)

func sampleParameters() []TrackedParameter {
	return []TrackedParameter{
		{Name: "quelle", ShortAlias: "q", Fallback: "direct"},
		{Name: "campaign"},
		{Name: "partner", ShortAlias: "p", RedirectURL: "https://partner.test/"},
	}
}

func TestResolve(t *testing.T) {
	r, err := NewRegistry(sampleParameters(), Obfuscation{})
	require.NoError(t, err)

	tests := []struct {
		key       string
		canonical string
		ok        bool
	}{
		{"quelle", "quelle", true},
		{"q", "quelle", true},
		{"campaign", "campaign", true},
		{"p", "partner", true},
		{"Quelle", "", false},
		{"Q", "", false},
		{"utm_source", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			canonical, ok := r.Resolve(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.canonical, canonical)
		})
	}
}

func TestIncomingKeysOrder(t *testing.T) {
	r, err := NewRegistry(sampleParameters(), Obfuscation{})
	require.NoError(t, err)

	assert.Equal(t, []string{"quelle", "q", "campaign", "partner", "p"}, r.IncomingKeys())
}

func TestParametersAreCopies(t *testing.T) {
	r, err := NewRegistry(sampleParameters(), Obfuscation{})
	require.NoError(t, err)

	list := r.Parameters()
	list[0].Name = "mutated"

	p, ok := r.Lookup("quelle")
	require.True(t, ok)
	assert.Equal(t, "q", p.ShortAlias)
	assert.Equal(t, "q", p.Key())
	assert.Equal(t, 3, r.Len())
}

func TestKeyWithoutAlias(t *testing.T) {
	assert.Equal(t, "campaign", TrackedParameter{Name: "campaign"}.Key())
}

func TestValidateRejectsCollisions(t *testing.T) {
	tests := []struct {
		name string
		list []TrackedParameter
		code string
	}{
		{
			name: "empty name",
			list: []TrackedParameter{{Name: ""}},
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "duplicate name",
			list: []TrackedParameter{{Name: "a"}, {Name: "a"}},
			code: errors.ErrCodeDuplicateName,
		},
		{
			name: "alias equals other name",
			list: []TrackedParameter{{Name: "q"}, {Name: "quelle", ShortAlias: "q"}},
			code: errors.ErrCodeAliasCollision,
		},
		{
			name: "alias used twice",
			list: []TrackedParameter{{Name: "a", ShortAlias: "x"}, {Name: "b", ShortAlias: "x"}},
			code: errors.ErrCodeAliasCollision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.list, Obfuscation{})
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))

			var pe *errors.ParamError
			require.True(t, stderrors.As(err, &pe))
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestAliasEqualToOwnNameIsAllowed(t *testing.T) {
	_, err := NewRegistry([]TrackedParameter{{Name: "q", ShortAlias: "q"}}, Obfuscation{})
	assert.NoError(t, err)
}

func TestLenientRegistryLastRegisteredWins(t *testing.T) {
	r := NewRegistryLenient([]TrackedParameter{
		{Name: "q"},
		{Name: "quelle", ShortAlias: "q"},
	}, Obfuscation{})

	canonical, ok := r.Resolve("q")
	require.True(t, ok)
	assert.Equal(t, "quelle", canonical)
	assert.Equal(t, []string{"q", "quelle"}, r.IncomingKeys())
}

func TestObfuscationAccessors(t *testing.T) {
	r, err := NewRegistry(nil, Obfuscation{Enabled: true, SecretKey: "k"})
	require.NoError(t, err)

	assert.True(t, r.ObfuscationEnabled())
	assert.Equal(t, "k", r.SecretKey())
	assert.Empty(t, r.IncomingKeys())
}

func TestSourceSwap(t *testing.T) {
	s := NewSource(nil)
	require.NotNil(t, s.Current())
	assert.Equal(t, 0, s.Current().Len())

	next, err := NewRegistry(sampleParameters(), Obfuscation{})
	require.NoError(t, err)

	prev := s.Swap(next)
	assert.Equal(t, 0, prev.Len())
	assert.Same(t, next, s.Current())
}

func TestSourceConcurrentAccess(t *testing.T) {
	s := NewSource(Empty())
	next, err := NewRegistry(sampleParameters(), Obfuscation{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Current().IncomingKeys()
		}()
		go func() {
			defer wg.Done()
			s.Swap(next)
		}()
	}
	wg.Wait()

	assert.Same(t, next, s.Current())
}
