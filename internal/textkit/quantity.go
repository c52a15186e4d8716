package textkit

import (
	"regexp"
	"strings"
)

var (
	percentRE = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	unitRE    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)[\s-]*(weeks?|months?|years?|days?|hours?|minutes?|grams?|mg|mcg|iu|kg|lbs?|g|reps?|sets?|servings?|x)\b`)
)

// Quantities returns the numeric/quantity tokens of s in a canonical form:
// percentages as "18%", unit-tagged numbers as "12 week" (unit lowercased
// and singular). Shared quantities are strong grounding evidence because a
// reply that repeats the target's numbers is engaging with its specifics.
func Quantities(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(q string) {
		if _, dup := seen[q]; dup {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	for _, m := range percentRE.FindAllStringSubmatch(s, -1) {
		add(m[1] + "%")
	}
	for _, m := range unitRE.FindAllStringSubmatch(s, -1) {
		unit := strings.ToLower(m[2])
		if unit != "x" {
			unit = strings.TrimSuffix(unit, "s")
		}
		add(m[1] + " " + unit)
	}
	return out
}

// SharedQuantity reports whether a and b mention at least one identical
// quantity token.
func SharedQuantity(a, b string) bool {
	bq := Quantities(b)
	if len(bq) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(bq))
	for _, q := range bq {
		set[q] = struct{}{}
	}
	for _, q := range Quantities(a) {
		if _, ok := set[q]; ok {
			return true
		}
	}
	return false
}
