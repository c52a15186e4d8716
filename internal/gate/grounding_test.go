package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replygate/internal/config"
)

func TestGroundingGate(t *testing.T) {
	g := NewGroundingGate(config.Grounding{MaxKeyphrases: 15})

	t.Run("keyphrase quoted verbatim", func(t *testing.T) {
		r := g.Check(
			"Creatine monohydrate is still the most studied supplement on the market",
			"Worth adding that creatine also shows cognitive effects in sleep-deprived subjects.",
		)
		require.True(t, r.Pass)
		assert.Equal(t, "keyphrase", r.Detail["basis"])
	})

	t.Run("shared quantity", func(t *testing.T) {
		r := g.Check(
			"New study: creatine timing doesn't matter. Take it whenever. 18% strength gains over 12 weeks either way.",
			"That 18% figure is consistent with the broader literature, assuming daily adherence.",
		)
		require.True(t, r.Pass)
		assert.Equal(t, "quantity", r.Detail["basis"])
	})

	t.Run("three word quote overlap", func(t *testing.T) {
		r := g.Check(
			"You can not out train a bad diet no matter how hard you go in the gym",
			"Where does recovery fit when most of your week is in the gym already?",
		)
		require.True(t, r.Pass)
		assert.Equal(t, "quote_overlap", r.Detail["basis"])
	})

	t.Run("echo clause", func(t *testing.T) {
		r := g.Check(
			"Creatine loading phases are pointless marketing from supplement companies",
			"Makes sense to me, the maintenance dose gets you to the same place in a month anyway.",
		)
		require.True(t, r.Pass)
		assert.Equal(t, "echo_clause", r.Detail["basis"])
	})

	t.Run("target too thin to ground against", func(t *testing.T) {
		r := g.Check("Oh no. Not this. Not now.", "Hang in there.")
		require.True(t, r.Pass)
		assert.Equal(t, "ungroundable_target", r.Detail["basis"])
	})

	t.Run("generic nicety regenerates with guidance", func(t *testing.T) {
		r := g.Check(
			"New study: creatine raises training volume 14% in trained lifters over eight weeks",
			"Love this, keep it up!",
		)
		require.False(t, r.Pass)
		assert.Equal(t, ActionRegen, r.Action)
		assert.Equal(t, CodeUngroundedReply, r.Code)
		assert.Equal(t, "no_echo_or_keywords", r.Detail["reason"])
		assert.Contains(t, r.Guidance, `"study"`)
		phrases, ok := r.Detail["keyphrases"].([]string)
		require.True(t, ok)
		assert.NotEmpty(t, phrases)
		assert.LessOrEqual(t, len(phrases), 5)
	})
}
