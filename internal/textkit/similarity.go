package textkit

import "strings"

// Jaccard returns the token-set overlap of two texts in [0,1]. Symmetric,
// and 1.0 for identical inputs. Two texts with no tokens at all compare
// equal and score 1.
func Jaccard(a, b string) float64 {
	as, bs := tokenSet(a), tokenSet(b)
	if len(as) == 0 && len(bs) == 0 {
		return 1
	}
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for t := range as {
		if _, ok := bs[t]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

// SharedWordSequence reports whether any n consecutive words of a also
// appear consecutively in b. Comparison is lowercase and punctuation-blind,
// so a reply quoting "increased strength 18" matches the target even when
// the punctuation around it differs.
func SharedWordSequence(a, b string, n int) bool {
	if n <= 0 {
		return false
	}
	aw, bw := Tokens(a), Tokens(b)
	if len(aw) < n || len(bw) < n {
		return false
	}
	windows := make(map[string]struct{}, len(aw))
	for i := 0; i+n <= len(aw); i++ {
		windows[strings.Join(aw[i:i+n], " ")] = struct{}{}
	}
	for i := 0; i+n <= len(bw); i++ {
		if _, ok := windows[strings.Join(bw[i:i+n], " ")]; ok {
			return true
		}
	}
	return false
}
