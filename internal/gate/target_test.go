package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replygate/internal/config"
	"replygate/internal/reply"
)

func TestTargetGuard(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	g := NewTargetGuard(config.Target{MaxAgeMinutes: 180, MinContextLength: 30}, func() time.Time { return now })

	snap := func(text string, isRoot reply.Tristate, postedAgo time.Duration) *reply.TargetSnapshot {
		s := reply.NewSnapshot("1001", text, "lifter_jane", isRoot, now)
		if postedAgo > 0 {
			s.PostedAt = now.Add(-postedAgo)
		}
		return s
	}

	t.Run("nil target", func(t *testing.T) {
		r := g.Check(nil)
		require.False(t, r.Pass)
		assert.Equal(t, CodeReplyWithoutTarget, r.Code)
	})

	t.Run("flagged as non-root", func(t *testing.T) {
		r := g.Check(snap("Totally agree with everything in that thread about morning routines", reply.TristateFalse, time.Hour))
		require.False(t, r.Pass)
		assert.Equal(t, CodeTargetIsReply, r.Code)
	})

	t.Run("leading mention reads as reply", func(t *testing.T) {
		r := g.Check(snap("@coach thanks, switching my magnesium to the evening", reply.TristateUnknown, time.Hour))
		require.False(t, r.Pass)
		assert.Equal(t, CodeTargetIsReply, r.Code)
	})

	t.Run("platform reply banner leaked into text", func(t *testing.T) {
		r := g.Check(snap("Replying to @drfeelgood and 2 others: the zinc claim is overstated", reply.TristateUnknown, time.Hour))
		require.False(t, r.Pass)
		assert.Equal(t, CodeTargetIsReply, r.Code)
	})

	t.Run("too old", func(t *testing.T) {
		r := g.Check(snap("Four hours of replies later and nobody has cited a single actual study on this", reply.TristateTrue, 4*time.Hour))
		require.False(t, r.Pass)
		assert.Equal(t, CodeTooOld, r.Code)
		assert.Equal(t, 240, r.Detail["age_minutes"])
		assert.Equal(t, 180, r.Detail["max_age_minutes"])
	})

	t.Run("too little context", func(t *testing.T) {
		r := g.Check(snap("Reply to tweet 12345", reply.TristateTrue, 30*time.Minute))
		require.False(t, r.Pass)
		assert.Equal(t, CodeInsufficientContext, r.Code)
		assert.Equal(t, 20, r.Detail["chars"])
		assert.Equal(t, 30, r.Detail["min_chars"])
	})

	t.Run("unknown posted time skips the age check", func(t *testing.T) {
		r := g.Check(snap("No timestamp came through capture but the post itself has plenty to work with", reply.TristateTrue, 0))
		assert.True(t, r.Pass)
	})

	t.Run("fresh root with enough context", func(t *testing.T) {
		r := g.Check(snap("Started 5g of creatine daily three weeks ago and my gym numbers are already moving", reply.TristateTrue, 45*time.Minute))
		require.True(t, r.Pass)
		assert.Equal(t, ActionPost, r.Action)
	})
}
