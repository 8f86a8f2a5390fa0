package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetDefault(t *testing.T) {
	s := NewStore()

	assert.Equal(t, "X", s.Get("quelle", "X"))
	assert.Equal(t, "<b>raw</b>", s.Get("quelle", "<b>raw</b>"))

	s.Set("quelle", "newsletter")
	assert.Equal(t, "newsletter", s.Get("quelle", "X"))

	v, ok := s.Lookup("quelle")
	assert.True(t, ok)
	assert.Equal(t, "newsletter", v)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestStoreSetOverwrites(t *testing.T) {
	s := NewStore()
	s.Set("quelle", "a")
	s.Set("quelle", "b")

	assert.Equal(t, "b", s.Get("quelle", ""))
	assert.Equal(t, 1, s.Len())
}

func TestStoreAllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Set("a", "1")

	all := s.All()
	all["a"] = "changed"
	all["b"] = "2"

	assert.Equal(t, map[string]string{"a": "1"}, s.All())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Set(fmt.Sprintf("k%d", i%10), "v")
		}(i)
		go func() {
			defer wg.Done()
			_ = s.All()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	store := NewStore()
	got, ok := FromContext(WithStore(context.Background(), store))
	require.True(t, ok)
	assert.Same(t, store, got)

	_, ok = FromContext(WithStore(context.Background(), nil))
	assert.False(t, ok)
}
