package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replygate/internal/config"
)

func newQualityFilter() *QualityFilter {
	cfg := config.DefaultConfig()
	return NewQualityFilter(cfg.Pipeline.Quality, cfg.Pipeline.Topic.HomeKeywords)
}

func TestQualityFilterDenyOrder(t *testing.T) {
	q := newQualityFilter()

	t.Run("low signal wins over emoji spam", func(t *testing.T) {
		// An emoji wall is also low-signal; the earlier check must report.
		r := q.Check(TargetContent{Text: "🔥🔥🔥🔥🔥"})
		require.False(t, r.Pass)
		assert.Equal(t, CodeLowSignalTarget, r.Code)
		assert.Equal(t, ActionSkip, r.Action)
	})

	t.Run("emoji ratio", func(t *testing.T) {
		r := q.Check(TargetContent{
			Text: "creatine monohydrate works great 💪💪💪💪💪💪💪💪💪💪💪💪💪💪💪💪💪💪💪💪",
		})
		require.False(t, r.Pass)
		assert.Equal(t, CodeEmojiSpamTarget, r.Code)
		assert.Greater(t, r.Detail["emoji_ratio"].(float64), 0.35)
	})

	t.Run("emoji dominant lines", func(t *testing.T) {
		r := q.Check(TargetContent{
			Text: "Magnesium glycinate before bed changed my sleep quality completely, deep sleep way up\n💤💤💤\n🙌🙌🙌",
		})
		require.False(t, r.Pass)
		assert.Equal(t, CodeEmojiSpamTarget, r.Code)
		assert.Equal(t, 2, r.Detail["emoji_lines"])
	})

	t.Run("parody signal in bio", func(t *testing.T) {
		r := q.Check(TargetContent{
			Text:       "Hot take: creatine is the only supplement anyone actually needs for real gym progress",
			AuthorName: "Gym Bro Wisdom",
			AuthorBio:  "Parody account. Not affiliated with any gym bro, living or lifting.",
		})
		require.False(t, r.Pass)
		assert.Equal(t, CodeParodyOrBot, r.Code)
	})

	t.Run("off limits topic", func(t *testing.T) {
		r := q.Check(TargetContent{
			Text: "This supplement stack gives guaranteed returns on your health investment, DM me to invest today",
		})
		require.False(t, r.Pass)
		assert.Equal(t, CodeOffLimitsTopic, r.Code)
		assert.Equal(t, "scam", r.Detail["category"])
	})
}

func TestQualityFilterPassScoring(t *testing.T) {
	q := newQualityFilter()

	t.Run("rich target scores higher than bare one", func(t *testing.T) {
		rich := q.Check(TargetContent{
			Text:       "New meta-analysis found creatine improved training volume by 14% over 12 weeks. Does timing matter for protein too?",
			AuthorName: "Dana Reyes",
			AuthorBio:  "Strength coach. I read the studies so you don't have to.",
		})
		bare := q.Check(TargetContent{
			Text: "went for a walk today and then made some lunch and watched the rain",
		})
		require.True(t, rich.Pass)
		require.True(t, bare.Pass)
		assert.Greater(t, rich.Score, bare.Score)
		assert.Equal(t, rich.Score, rich.Detail["score"])
	})

	t.Run("score stays within bounds", func(t *testing.T) {
		long := q.Check(TargetContent{
			Text: "Creatine protein magnesium zinc omega-3 vitamin-d ashwagandha collagen electrolytes fiber " +
				"and every other supplement stacked together in one giant morning routine that takes forty minutes " +
				"to get through before the gym, plus a study found it all improved recovery by 22% over 12 weeks. Worth it?",
			AuthorName: "Stack Maximalist",
		})
		require.True(t, long.Pass)
		assert.LessOrEqual(t, long.Score, 100)
		assert.Positive(t, long.Score)
	})
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-5))
	assert.Equal(t, 0, clampScore(0))
	assert.Equal(t, 7, clampScore(7))
	assert.Equal(t, 20, clampScore(20))
	assert.Equal(t, 20, clampScore(31))
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("creatine before bed", "creatine"))
	assert.True(t, containsWord("take creatine", "creatine"))
	assert.False(t, containsWord("concreatine compound", "creatine"))
	assert.False(t, containsWord("creatines", "creatine"))
	assert.True(t, containsWord("love the premier league games", "premier league"))
}
