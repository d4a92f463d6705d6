package coerce

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer canonicalizes free text to NFC and strips control characters.
// Long text keeps tabs and newlines.
type normalizer struct {
	t         transform.Transformer
	keepSpace bool
}

func newNormalizer(keepSpace bool) *normalizer {
	drop := runes.Predicate(func(r rune) bool {
		if keepSpace && (r == '\n' || r == '\t') {
			return false
		}
		return unicode.IsControl(r)
	})
	return &normalizer{
		t:         transform.Chain(runes.Remove(drop), norm.NFC),
		keepSpace: keepSpace,
	}
}

func (n *normalizer) normalize(s string) string {
	if printableASCII(s, n.keepSpace) {
		return s
	}
	out, _, err := transform.String(n.t, s)
	if err != nil {
		return s
	}
	return out
}

func printableASCII(s string, keepSpace bool) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf || c == 0x7f {
			return false
		}
		if c < 0x20 && !(keepSpace && (c == '\n' || c == '\t')) {
			return false
		}
	}
	return true
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
