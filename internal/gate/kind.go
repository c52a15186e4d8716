package gate

import (
	"replygate/internal/reply"
	"replygate/internal/textkit"
)

// KindGuard checks that the candidate's declared kind matches its shape.
// A candidate with a target must be a reply and must not read like a thread
// segment; a candidate declared as a reply must actually have a target.
type KindGuard struct{}

func NewKindGuard() *KindGuard {
	return &KindGuard{}
}

// Check evaluates the candidate against effectiveText, which is the reply
// text after any contract sanitization.
func (k *KindGuard) Check(c *reply.Candidate, effectiveText string) Result {
	if c.Target == nil {
		if c.Kind == reply.KindReply {
			return skip(NameKindGuard, CodeReplyWithoutTarget, map[string]any{
				"kind": string(c.Kind),
			})
		}
		return pass(NameKindGuard)
	}
	if c.Kind != reply.KindReply {
		return skip(NameKindGuard, CodeKindMismatch, map[string]any{
			"kind":     string(c.Kind),
			"expected": string(reply.KindReply),
		})
	}
	if labels := textkit.ThreadMarkers(effectiveText); len(labels) > 0 {
		return skip(NameKindGuard, CodeThreadMarkersInReply, map[string]any{
			"markers": labels,
		})
	}
	return pass(NameKindGuard)
}
