// Package codec implements the reversible value obfuscation applied to
// tracked parameter values when they travel through URLs.
//
// A token is base64(value + Separator + key) with the base64 alphabet's
// '+', '/' and '=' swapped for '-', '_' and '.'. Decoding is fail-closed:
// anything that is not a token produced with the same key comes back
// unchanged, so a rotated key degrades old links to their literal text.
//
// This is a deterrent against casual tampering, not encryption.
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// Separator joins the value and the key inside a token. Values containing it
// do not round-trip; the sanitizer strips control characters, so captured
// values never do.
const Separator = "\x1f"

var (
	toURLSafe   = strings.NewReplacer("+", "-", "/", "_", "=", ".")
	fromURLSafe = strings.NewReplacer("-", "+", "_", "/", ".", "=")
)

// Encode obfuscates value with key.
func Encode(value, key string) string {
	raw := base64.StdEncoding.EncodeToString([]byte(value + Separator + key))
	return toURLSafe.Replace(raw)
}

// Decode reverses Encode. It returns token unchanged when token is not valid
// base64, when it carries no separator, or when the embedded key differs
// from key.
func Decode(token, key string) string {
	value, _ := TryDecode(token, key)
	return value
}

// TryDecode is Decode with a flag reporting whether token was a valid token
// for key.
func TryDecode(token, key string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(fromURLSafe.Replace(token))
	if err != nil {
		return token, false
	}

	value, embedded, found := strings.Cut(string(raw), Separator)
	if !found || embedded != key {
		return token, false
	}

	return value, true
}

// GenerateKey returns a random secret suitable for Obfuscation.SecretKey.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Codec binds a secret key so callers do not pass it around.
type Codec struct {
	key string
}

// New returns a Codec for key.
func New(key string) Codec {
	return Codec{key: key}
}

// Encode obfuscates value with the bound key.
func (c Codec) Encode(value string) string {
	return Encode(value, c.key)
}

// Decode reverses Encode with the bound key, fail-closed.
func (c Codec) Decode(token string) string {
	return Decode(token, c.key)
}
