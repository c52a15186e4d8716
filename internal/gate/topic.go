package gate

import (
	"strings"

	"replygate/internal/reply"
)

// TopicGuard catches the embarrassing failure mode where the account injects
// its home subject into a conversation about something else entirely.
//
// The rule is deliberately asymmetric. A foreign-domain target that mentions
// the home domain at all may be answered in kind, and a reply that stays on
// the target's own subject is always fine. Only the combination of a purely
// foreign target and a home-domain reply is denied.
type TopicGuard struct {
	home []string
}

func NewTopicGuard(homeKeywords []string) *TopicGuard {
	return &TopicGuard{home: homeKeywords}
}

var foreignDomains = []struct {
	label    string
	keywords []string
}{
	{"tech", []string{
		"javascript", "typescript", "python", "kubernetes", "devops",
		"codebase", "frontend", "backend", "saas", "startup", "blockchain",
		"crypto", "web3", "llm", "chatgpt",
	}},
	{"politics", []string{
		"election", "senate", "congress", "parliament", "legislation",
		"ballot", "republican", "democrat", "president", "campaign trail",
		"tariff", "geopolitics",
	}},
	{"entertainment", []string{
		"movie", "film", "album", "netflix", "trailer", "box office",
		"episode", "concert", "celebrity", "grammy", "oscar",
	}},
	{"sports", []string{
		"touchdown", "quarterback", "playoffs", "super bowl", "nba", "nfl",
		"premier league", "world cup", "home run", "grand slam",
	}},
}

func (t *TopicGuard) Check(c *reply.Candidate, effectiveText string) Result {
	if c.Target == nil {
		return pass(NameTopicGuard)
	}
	targetLow := strings.ToLower(c.Target.Text)

	domain := foreignDomain(targetLow)
	if domain == "" {
		return pass(NameTopicGuard)
	}
	if hitsAny(targetLow, t.home) {
		return pass(NameTopicGuard)
	}
	if !hitsAny(strings.ToLower(effectiveText), t.home) {
		return pass(NameTopicGuard)
	}
	return skip(NameTopicGuard, CodeTopicMismatch, map[string]any{
		"target_domain": domain,
	})
}

func foreignDomain(low string) string {
	for _, d := range foreignDomains {
		for _, kw := range d.keywords {
			if containsWord(low, kw) {
				return d.label
			}
		}
	}
	return ""
}

func hitsAny(low string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(low, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
