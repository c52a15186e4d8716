package textkit

import (
	"regexp"
	"strings"
)

// markerPattern pairs a stable label (used in gate detail payloads) with its
// pattern. This table is the single thread-marker definition for the whole
// pipeline; the output contract and the kind guard both read it.
type markerPattern struct {
	label string
	re    *regexp.Regexp
}

var threadMarkers = []markerPattern{
	{"fraction", regexp.MustCompile(`\b\d{1,3}\s*/\s*\d{1,3}\b`)},
	{"leading_counter", regexp.MustCompile(`(?m)^\s*\d{1,3}\s*/(?:\s+|$)`)},
	{"numbered_list", regexp.MustCompile(`(?m)^\s*\d{1,3}[.)]\s+`)},
	{"parenthesized_number", regexp.MustCompile(`\(\d{1,3}\)`)},
	{"part_number", regexp.MustCompile(`(?i)\bpart\s+\d+\b`)},
	{"thread_word", regexp.MustCompile(`(?i)\bthread\b`)},
	{"thread_emoji", regexp.MustCompile(`\x{1F9F5}`)},
	{"down_arrow", regexp.MustCompile(`\x{1F447}`)},
}

// HasThreadMarker reports whether s carries any marker that outs it as one
// post of a multi-post thread.
func HasThreadMarker(s string) bool {
	for _, m := range threadMarkers {
		if m.re.MatchString(s) {
			return true
		}
	}
	return false
}

// ThreadMarkers returns the labels of every marker family present in s, in
// table order.
func ThreadMarkers(s string) []string {
	var labels []string
	for _, m := range threadMarkers {
		if m.re.MatchString(s) {
			labels = append(labels, m.label)
		}
	}
	return labels
}

var lineSpaceRE = regexp.MustCompile(`[ \t]{2,}`)

// StripThreadMarkers removes every marker match and tidies the leftover
// spacing line by line. Line structure is preserved; collapsing excess blank
// lines is the sanitizer's job, not this function's.
func StripThreadMarkers(s string) string {
	out := s
	for _, m := range threadMarkers {
		out = m.re.ReplaceAllString(out, "")
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(lineSpaceRE.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
