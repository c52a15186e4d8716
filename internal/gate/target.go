package gate

import (
	"strings"
	"time"

	"replygate/internal/config"
	"replygate/internal/reply"
	"replygate/internal/textkit"
)

// TargetGuard checks structural eligibility of the target: root posts only,
// fresh enough to still be in the conversation window, and long enough to
// ground a reply against. Every deny is a hard skip; no regeneration can fix
// the target.
type TargetGuard struct {
	cfg config.Target
	now func() time.Time
}

func NewTargetGuard(cfg config.Target, now func() time.Time) *TargetGuard {
	if now == nil {
		now = time.Now
	}
	return &TargetGuard{cfg: cfg, now: now}
}

func (g *TargetGuard) Check(t *reply.TargetSnapshot) Result {
	if t == nil {
		return skip(NameTargetGuard, CodeReplyWithoutTarget, nil)
	}

	text := strings.TrimSpace(t.Text)
	if g.looksLikeReply(t, text) {
		return skip(NameTargetGuard, CodeTargetIsReply, map[string]any{
			"is_root": t.IsRoot.String(),
		})
	}

	// A zero PostedAt means capture could not read the timestamp; staleness
	// is unprovable then, so the age check does not run.
	if !t.PostedAt.IsZero() {
		age := g.now().Sub(t.PostedAt)
		if maxAge := time.Duration(g.cfg.MaxAgeMinutes) * time.Minute; age > maxAge {
			return skip(NameTargetGuard, CodeTooOld, map[string]any{
				"age_minutes":     int(age.Minutes()),
				"max_age_minutes": g.cfg.MaxAgeMinutes,
			})
		}
	}

	if n := textkit.RuneLen(text); n < g.cfg.MinContextLength {
		return skip(NameTargetGuard, CodeInsufficientContext, map[string]any{
			"chars":     n,
			"min_chars": g.cfg.MinContextLength,
		})
	}

	return pass(NameTargetGuard)
}

// looksLikeReply combines the capture-time rootness flag with two textual
// tells: posts opening with an @mention and the platform's "Replying to @"
// banner leaking into extracted text.
func (g *TargetGuard) looksLikeReply(t *reply.TargetSnapshot, text string) bool {
	if t.IsRoot == reply.TristateFalse {
		return true
	}
	if strings.HasPrefix(text, "@") {
		return true
	}
	return strings.Contains(strings.ToLower(text), "replying to @")
}
