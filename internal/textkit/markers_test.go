package textkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasThreadMarker(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"fraction", "Quick take (more soon) 1/5", true},
		{"leading counter", "1/ Here's why magnesium matters", true},
		{"numbered list", "1. first point\n2. second point", true},
		{"parenthesized number", "my thoughts (2)", true},
		{"part word", "Part 3 of my deep dive", true},
		{"thread word", "a thread on sleep", true},
		{"thread emoji", "big news 🧵", true},
		{"down arrow", "keep reading 👇", true},
		{"clean reply", "That 18% gain at 12 weeks is notable.", false},
		{"study n is not a marker", "increased strength (n=120)", false},
		{"four digit ratio untouched", "dosing at 5000/10000 IU", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasThreadMarker(tc.in))
		})
	}
}

func TestThreadMarkersLabels(t *testing.T) {
	got := ThreadMarkers("1/ part 2 of this thread 👇")
	assert.Contains(t, got, "leading_counter")
	assert.Contains(t, got, "part_number")
	assert.Contains(t, got, "thread_word")
	assert.Contains(t, got, "down_arrow")
}

func TestStripThreadMarkers(t *testing.T) {
	t.Run("counters removed and lines kept", func(t *testing.T) {
		in := "1/ Here's why magnesium matters\n2/ It regulates over 300 enzymes"
		want := "Here's why magnesium matters\nIt regulates over 300 enzymes"
		assert.Equal(t, want, StripThreadMarkers(in))
	})
	t.Run("stripping converges", func(t *testing.T) {
		in := "1/5 thread incoming 👇 Part 1"
		once := StripThreadMarkers(in)
		assert.False(t, HasThreadMarker(once))
		assert.Equal(t, once, StripThreadMarkers(once))
	})
	t.Run("clean text untouched", func(t *testing.T) {
		in := "Solid point about creatine timing."
		assert.Equal(t, in, StripThreadMarkers(in))
	})
}
