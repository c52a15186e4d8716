package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"replygate/internal/reply"
)

func TestBuildPrompt(t *testing.T) {
	target := &reply.TargetSnapshot{
		TargetID:     "7001",
		Text:         "New study: creatine timing doesn't matter. 18% strength gains over 12 weeks either way.",
		AuthorHandle: "lifter_jane",
	}

	t.Run("first draft", func(t *testing.T) {
		sys, user := BuildPrompt(Request{Target: target, Persona: "a blunt strength coach"})

		assert.Contains(t, sys, "a blunt strength coach")
		assert.Contains(t, sys, "under 240 characters")
		assert.Contains(t, user, "@lifter_jane")
		assert.Contains(t, user, "creatine timing")
		assert.NotContains(t, user, "rejected")
	})

	t.Run("empty persona falls back", func(t *testing.T) {
		sys, _ := BuildPrompt(Request{Target: target})
		assert.Contains(t, sys, defaultPersona)
	})

	t.Run("regen carries guidance", func(t *testing.T) {
		_, user := BuildPrompt(Request{
			Target:   target,
			Guidance: []string{`Reference "creatine" or the 18% figure directly.`},
		})

		assert.Contains(t, user, "rejected")
		assert.Contains(t, user, "the 18% figure")
	})
}

func TestStripWrapping(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  creatine works  ", "creatine works"},
		{"double quoted", `"creatine works"`, "creatine works"},
		{"smart quoted", "“creatine works”", "creatine works"},
		{"labelled and quoted", `Reply: "creatine works"`, "creatine works"},
		{"interior quotes kept", `the "loading phase" is optional`, `the "loading phase" is optional`},
		{"unbalanced quote kept", `"creatine works`, `"creatine works`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripWrapping(tc.in))
		})
	}
}
