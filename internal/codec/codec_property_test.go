//go:build property
// +build property

package codec

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCodecProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("decode inverts encode", prop.ForAll(
		func(value, key string) bool {
			if strings.Contains(value, Separator) {
				return true
			}
			return Decode(Encode(value, key), key) == value
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("tokens are url safe", prop.ForAll(
		func(value, key string) bool {
			return !strings.ContainsAny(Encode(value, key), "+/=")
		},
		gen.AnyString(),
		gen.AlphaString(),
	))

	properties.Property("non-tokens decode to themselves", prop.ForAll(
		func(value string) bool {
			return Decode(value, "fixed-key") == value
		},
		gen.AlphaString(),
	))

	properties.Property("wrong key returns the token", prop.ForAll(
		func(value, key string) bool {
			token := Encode(value, key)
			return Decode(token, key+"x") == token
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
