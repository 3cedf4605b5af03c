// Package textproc normalizes and fingerprints incoming message text.
//
// Every entry point into the scoring pipeline funnels through Normalize so
// that visually identical texts (different Unicode compositions, stray
// whitespace, case variants) map to the same cache key and the same feature
// stream.
package textproc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyText is returned for texts that are empty after trimming.
	ErrEmptyText = errors.New("text is empty")
	// ErrTextTooLong is returned for texts over the configured limit.
	ErrTextTooLong = errors.New("text exceeds maximum length")
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Clean strips control characters (except newline and tab) and applies NFC
// so combining sequences compare equal to their precomposed forms.
func Clean(text string) string {
	text = norm.NFC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize produces the canonical form used for cache keys: NFC, case-folded,
// single-space whitespace, trimmed. Scoring itself works on the cleaned text,
// not this collapsed form, so line structure is preserved there.
func Normalize(text string) string {
	text = Clean(text)
	text = strings.ToLower(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Fingerprint returns the SHA-256 hex digest of the normalized text.
// Two texts that normalize identically share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// ValidateLength rejects empty and oversized inputs. maxChars counts runes,
// not bytes, so multilingual text is not penalized for UTF-8 width.
func ValidateLength(text string, maxChars int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > maxChars {
		return ErrTextTooLong
	}
	return nil
}

// SplitSentences breaks text into sentence-like units on terminal punctuation
// and newlines. Empty segments are dropped.
func SplitSentences(text string) []string {
	parts := sentenceRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var sentenceRe = regexp.MustCompile(`[.!?\n]+`)
