package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replygate/internal/config"
	"replygate/internal/textkit"
)

func newContract() *OutputContract {
	return NewOutputContract(config.Contract{
		MaxLength:      260,
		MaxLineBreaks:  2,
		MaxParagraphs:  2,
		MaxBulletLines: 2,
	})
}

func TestOutputContractCleanPass(t *testing.T) {
	r := newContract().Check("Glycinate is the form most of the sleep trials used, worth checking your label.")
	require.True(t, r.Pass)
	assert.Empty(t, r.SanitizedText)
	assert.Nil(t, r.Detail)
}

func TestOutputContractSanitization(t *testing.T) {
	o := newContract()

	t.Run("thread counters stripped and the text rescued", func(t *testing.T) {
		r := o.Check("1/ Here's why magnesium matters\n2/ It regulates over 300 enzymes in the body")
		require.True(t, r.Pass)
		assert.Equal(t, "Here's why magnesium matters\nIt regulates over 300 enzymes in the body", r.SanitizedText)
		assert.Equal(t, true, r.Detail["sanitized"])
	})

	t.Run("still over length after stripping is a skip, not a truncation", func(t *testing.T) {
		body := strings.Repeat("magnesium regulates hundreds of enzymatic reactions in the body ", 5)
		r := o.Check("1/ " + body + "\n2/ still more coming")
		require.False(t, r.Pass)
		assert.Equal(t, CodeTooLong, r.Code)
		assert.Greater(t, r.Detail["chars"].(int), 260)
	})

	t.Run("blank line runs collapsed", func(t *testing.T) {
		r := o.Check("First point.\n\n\n\nSecond point.")
		require.True(t, r.Pass)
		assert.Equal(t, "First point.\n\nSecond point.", r.SanitizedText)
	})

	t.Run("surplus paragraphs drop to the first", func(t *testing.T) {
		r := o.Check("Lead paragraph on dosing.\n\nSecond paragraph on timing.\n\nThird paragraph on brands.")
		require.True(t, r.Pass)
		assert.Equal(t, "Lead paragraph on dosing.", r.SanitizedText)
	})

	t.Run("pure length violation truncates at a sentence boundary", func(t *testing.T) {
		sentence := "Magnesium glycinate has the best absorption data of the common forms in the sleep trials I have actually read through."
		r := o.Check(sentence + " " + sentence + " " + sentence)
		require.True(t, r.Pass)
		assert.Equal(t, sentence+" "+sentence, r.SanitizedText)
	})

	t.Run("plain line breaks beyond the cap cannot be repaired", func(t *testing.T) {
		r := o.Check("One\nTwo\nThree\nFour")
		require.False(t, r.Pass)
		assert.Equal(t, CodeTooManyLines, r.Code)
	})

	t.Run("bullet lists are rejected outright", func(t *testing.T) {
		r := o.Check("- creatine for strength\n- magnesium for sleep\n- zinc only if deficient")
		require.False(t, r.Pass)
		assert.Equal(t, CodeBulletList, r.Code)
	})
}

// A pass with rewritten text must itself satisfy the contract; the gate can
// return compliant text or a skip, never a still-violating pass.
func TestOutputContractConvergence(t *testing.T) {
	o := newContract()
	inputs := []string{
		"1/ short counter\n2/ second line",
		"1/ " + strings.Repeat("context is everything when replying ", 12) + "\n2/ more",
		"a\n\n\n\n\nb\n\n\n\nc",
		strings.Repeat("no sentence boundary anywhere in this wall of text ", 10),
		"Para one.\n\nPara two.\n\nPara three.\n\nPara four.",
		"🧵 thread below 👇\n\nActual content here.",
		"- one\n- two\n- three\n- four",
	}
	for _, in := range inputs {
		r := o.Check(in)
		if r.Pass {
			effective := r.SanitizedText
			if effective == "" {
				effective = in
			}
			code, _ := o.validate(effective)
			assert.Equal(t, Code(""), code, "input %q passed with non-compliant text", in)
		} else {
			assert.NotEmpty(t, r.Code)
			assert.Equal(t, ActionSkip, r.Action)
		}
	}
}

func TestTruncateAtSentence(t *testing.T) {
	t.Run("under the cap is untouched", func(t *testing.T) {
		assert.Equal(t, "Short one.", truncateAtSentence("Short one.", 260))
	})

	t.Run("cuts at the last boundary before the cap", func(t *testing.T) {
		text := strings.Repeat("a", 109) + ". " + strings.Repeat("b", 200)
		got := truncateAtSentence(text, 260)
		assert.Equal(t, strings.Repeat("a", 109)+".", got)
	})

	t.Run("boundary before the floor falls back to a hard cut", func(t *testing.T) {
		text := "Wow! " + strings.Repeat("w", 300)
		got := truncateAtSentence(text, 260)
		assert.True(t, strings.HasSuffix(got, "…"))
		assert.LessOrEqual(t, textkit.RuneLen(got), 260)
	})

	t.Run("decimal points are not sentence boundaries", func(t *testing.T) {
		text := strings.Repeat("a", 50) + " 2.5 " + strings.Repeat("b", 300)
		got := truncateAtSentence(text, 260)
		assert.True(t, strings.HasSuffix(got, "…"))
	})
}
