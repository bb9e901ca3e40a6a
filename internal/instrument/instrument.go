// Package instrument handles opinion-text normalization and validation.
// The normalized text is the instrument's storage key, so every entry
// point must canonicalize it the same way before touching the store.
package instrument

import (
	"errors"
	"regexp"
	"strings"
)

// MaxLen is the maximum length of an instrument's text in runes.
const MaxLen = 280

var (
	ErrEmpty   = errors.New("instrument: text is empty")
	ErrTooLong = errors.New("instrument: text exceeds maximum length")
)

// whitespaceRE collapses any run of whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize canonicalizes an instrument's text: trims surrounding
// whitespace, collapses internal runs to single spaces, and enforces
// length bounds. Two texts that normalize equal are the same instrument.
func Normalize(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	text = whitespaceRE.ReplaceAllString(text, " ")
	if len([]rune(text)) > MaxLen {
		return "", ErrTooLong
	}
	return text, nil
}
