// Package generate drafts reply text. The pipeline treats drafts as
// untrusted input: everything the generator returns goes back through
// the gates, and a rejected draft comes back here with the gate's
// guidance attached.
package generate

import (
	"context"
	"fmt"
	"strings"

	"replygate/internal/reply"
)

// Request carries one drafting job. Guidance accumulates across regen
// rounds; each line is a concrete complaint about the previous draft.
type Request struct {
	Target   *reply.TargetSnapshot
	Persona  string
	Guidance []string
}

// Generator drafts a reply to the target post.
type Generator interface {
	Draft(ctx context.Context, req Request) (string, error)
}

const defaultPersona = "an evidence-minded supplements and nutrition account"

// draftRules mirrors the output contract so drafts usually clear it on
// the first try. The character ceiling sits under the real limit on
// purpose; models overshoot instructions more often than they undershoot.
const draftRules = `Rules, all of them hard:
- Reply to this specific post. Name a detail from it.
- One short paragraph, under 240 characters. No line breaks.
- Plain text. No hashtags, no links, at most one emoji.
- Never use thread formatting: no "1/", no thread emoji, no "part 2".
- No medical advice. Supplements are not medicine and you do not prescribe.`

// BuildPrompt renders the system and user prompts for one request.
func BuildPrompt(req Request) (system, user string) {
	persona := req.Persona
	if persona == "" {
		persona = defaultPersona
	}
	var sys strings.Builder
	fmt.Fprintf(&sys, "You write public replies as %s.\n\n", persona)
	sys.WriteString(draftRules)

	var u strings.Builder
	if req.Target != nil {
		fmt.Fprintf(&u, "Post by @%s:\n\"\"\"\n%s\n\"\"\"\n\n", req.Target.AuthorHandle, req.Target.Text)
	}
	if len(req.Guidance) > 0 {
		u.WriteString("Your previous draft was rejected. Fix every point below and draft again:\n")
		for _, g := range req.Guidance {
			fmt.Fprintf(&u, "- %s\n", g)
		}
		u.WriteString("\n")
	}
	u.WriteString("Write the reply text now. Output only the reply, nothing else.")
	return sys.String(), u.String()
}

// StripWrapping removes the quote pair models habitually wrap a reply
// in, plus any leading label.
func StripWrapping(s string) string {
	out := strings.TrimSpace(s)
	for _, label := range []string{"Reply:", "reply:", "Draft:"} {
		out = strings.TrimSpace(strings.TrimPrefix(out, label))
	}
	for _, p := range [][2]string{{`"`, `"`}, {"“", "”"}} {
		if len(out) > len(p[0])+len(p[1]) && strings.HasPrefix(out, p[0]) && strings.HasSuffix(out, p[1]) {
			out = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(out, p[0]), p[1]))
		}
	}
	return out
}
