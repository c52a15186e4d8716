// Package textkit holds the shared text-analysis primitives used by every
// gate: canonical normalization and hashing, tokenization, keyphrase
// extraction, emoji metrics, similarity scoring, quantity extraction, and
// thread-marker handling. Gates must not reimplement any of these locally;
// the integrity guarantees depend on the snapshot writer and the verifier
// agreeing byte-for-byte on what "normalized text" means, and on all gates
// agreeing on what counts as a keyword or a thread marker.
package textkit

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize collapses every whitespace run to a single space and trims the
// ends. Case is preserved so content hashes stay sensitive to any
// single-character semantic edit. Idempotent.
func Normalize(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// HashText returns the hex SHA-256 of the normalized text. Snapshot capture
// and live verification must both hash through this function; a second
// normalization path anywhere in the codebase breaks the context lock.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}

// PrefixHash hashes the first n runes of the normalized text. It is the
// looser integrity tier used when the full hash misses because the live page
// truncated or lightly edited the tail.
func PrefixHash(s string, n int) string {
	norm := Normalize(s)
	if runes := []rune(norm); len(runes) > n {
		norm = string(runes[:n])
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// RuneLen counts runes, not bytes. Every length limit in the pipeline is a
// rune limit.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateRunes cuts s to at most n runes. Used when embedding page text in
// audit payloads.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
