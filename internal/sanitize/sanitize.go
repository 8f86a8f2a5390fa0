// Package sanitize implements the plain-text policy applied to captured
// parameter values before they are stored.
//
// Policy, in order:
//   - invalid UTF-8 sequences are dropped
//   - markup is removed; only text content survives, with entities decoded
//   - any leftover '<' or '>' is removed so no tag can re-form
//   - control characters (tabs and newlines included) become spaces
//   - whitespace runs collapse to one space and the result is trimmed
//   - the result is NFC-normalized
//
// '&' and quotes are kept as-is. Renderers escape them at output time.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// MaxLength caps a sanitized value in bytes.
const MaxLength = 1024

// Text applies the plain-text policy to s.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")
	s = stripMarkup(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '<' || r == '>':
			return -1
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = norm.NFC.String(s)

	return truncate(s, MaxLength)
}

// stripMarkup keeps the text tokens of s. Comments, doctypes and tags are
// dropped, and the content of script and style elements is dropped with them.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if isRawTextElement(z) {
				skip++
			}
		case html.EndTagToken:
			if skip > 0 && isRawTextElement(z) {
				skip--
			}
		}
	}
}

func isRawTextElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
