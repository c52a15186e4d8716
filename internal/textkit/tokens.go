package textkit

import (
	"regexp"
	"strings"
)

// The one stopword list. The quality filter, the grounding gate, and
// keyphrase extraction all filter through this set so they agree on what a
// "meaningful" token is.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "all", "also", "am", "an",
		"and", "any", "are", "aren't", "as", "at", "be", "because", "been",
		"before", "being", "below", "between", "both", "but", "by", "can",
		"can't", "could", "did", "didn't", "do", "does", "doesn't", "doing",
		"don't", "down", "during", "each", "few", "for", "from", "further",
		"get", "got", "had", "has", "have", "having", "he", "her", "here",
		"hers", "him", "his", "how", "i", "i'm", "if", "in", "into", "is",
		"isn't", "it", "it's", "its", "just", "like", "me", "more", "most",
		"my", "no", "not", "now", "of", "off", "on", "once", "only", "or",
		"other", "our", "out", "over", "own", "really", "same", "she", "so",
		"some", "still", "such", "than", "that", "that's", "the", "their",
		"them", "then", "there", "these", "they", "this", "those", "through",
		"to", "too", "under", "until", "up", "very", "was", "wasn't", "we",
		"were", "what", "when", "where", "which", "while", "who", "why",
		"will", "with", "won't", "would", "you", "you're", "your",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether the lowercase token w carries no topical
// signal on its own.
func IsStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

var tokenRE = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}']*`)

// Tokens splits text into lowercase word tokens, dropping punctuation.
// Apostrophes survive inside words ("you're", "don't").
func Tokens(s string) []string {
	return tokenRE.FindAllString(strings.ToLower(s), -1)
}

// MeaningfulTokens returns the tokens longer than three runes that are not
// stopwords. This is the "signal" measure used by the quality filter.
func MeaningfulTokens(s string) []string {
	var out []string
	for _, t := range Tokens(s) {
		if RuneLen(t) > 3 && !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}
