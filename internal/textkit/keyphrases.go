package textkit

import "strings"

// Keyphrases extracts up to max anchor phrases from text: single non-stopword
// tokens of at least four runes first, then two- and three-word phrases that
// contain at least one such token. Phrases keep first-occurrence order and
// are deduplicated. A short or generic text can legitimately yield none;
// callers treat that as "nothing to ground against", not an error.
func Keyphrases(text string, max int) []string {
	if max <= 0 {
		return nil
	}
	words := Tokens(text)
	seen := make(map[string]struct{}, max)
	var out []string
	add := func(p string) {
		if len(out) >= max {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, w := range words {
		if isAnchorToken(w) {
			add(w)
		}
	}
	for n := 2; n <= 3 && len(out) < max; n++ {
		for i := 0; i+n <= len(words); i++ {
			gram := words[i : i+n]
			if !gramAnchored(gram) {
				continue
			}
			add(strings.Join(gram, " "))
		}
	}
	return out
}

// isAnchorToken: long enough to be distinctive and not a stopword.
func isAnchorToken(w string) bool {
	return RuneLen(w) >= 4 && !IsStopword(w)
}

// gramAnchored requires at least one anchor token so phrases like "of the
// most" never become keyphrases.
func gramAnchored(gram []string) bool {
	for _, w := range gram {
		if isAnchorToken(w) {
			return true
		}
	}
	return false
}
