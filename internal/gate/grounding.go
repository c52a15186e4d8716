package gate

import (
	"fmt"
	"regexp"
	"strings"

	"replygate/internal/config"
	"replygate/internal/textkit"
)

// GroundingGate verifies the generated reply textually engages with its
// target instead of being an interchangeable nicety. Evidence, strongest
// first: a target keyphrase quoted verbatim, a shared numeric quantity, a
// three-word quote overlap, or an explicit echo clause. A target too thin to
// yield keyphrases passes by default; blocking on an ungroundable target
// would starve the pipeline on short posts.
//
// Grounding failures are content defects, so the action is regen with
// concrete guidance rather than skip.
type GroundingGate struct {
	cfg config.Grounding
}

func NewGroundingGate(cfg config.Grounding) *GroundingGate {
	return &GroundingGate{cfg: cfg}
}

// Echo-clause family: phrasings that restate or acknowledge the target's
// claim even without quoting it.
var echoClauseREs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\byou'?re (saying|arguing|right that|pointing (at|out))\b`),
	regexp.MustCompile(`(?i)\bthat point about\b`),
	regexp.MustCompile(`(?i)\bthe part about\b`),
	regexp.MustCompile(`(?i)\bmakes sense\b`),
	regexp.MustCompile(`(?i)\b(good|fair|solid|interesting) point\b`),
	regexp.MustCompile(`(?i)\byou mentioned\b`),
	regexp.MustCompile(`(?i)\bas you (said|noted|put it)\b`),
}

func (g *GroundingGate) Check(targetText, replyText string) Result {
	phrases := textkit.Keyphrases(targetText, g.cfg.MaxKeyphrases)
	if len(phrases) == 0 {
		r := pass(NameGrounding)
		r.Detail = map[string]any{"basis": "ungroundable_target"}
		return r
	}

	lowReply := strings.ToLower(replyText)
	for _, p := range phrases {
		if strings.Contains(lowReply, p) {
			r := pass(NameGrounding)
			r.Detail = map[string]any{"basis": "keyphrase", "keyphrase": p}
			return r
		}
	}
	if textkit.SharedQuantity(targetText, replyText) {
		r := pass(NameGrounding)
		r.Detail = map[string]any{"basis": "quantity"}
		return r
	}
	if textkit.SharedWordSequence(targetText, replyText, 3) {
		r := pass(NameGrounding)
		r.Detail = map[string]any{"basis": "quote_overlap"}
		return r
	}
	if matchAny(replyText, echoClauseREs) {
		r := pass(NameGrounding)
		r.Detail = map[string]any{"basis": "echo_clause"}
		return r
	}

	return regen(NameGrounding, CodeUngroundedReply,
		groundingGuidance(phrases),
		map[string]any{
			"reason":     "no_echo_or_keywords",
			"keyphrases": headPhrases(phrases, 5),
		})
}

// groundingGuidance names concrete anchors for the regeneration prompt.
func groundingGuidance(phrases []string) string {
	anchors := headPhrases(phrases, 3)
	quoted := make([]string, len(anchors))
	for i, a := range anchors {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf("Echo the target's claim directly: reference %s in your first sentence.",
		strings.Join(quoted, " or "))
}

func headPhrases(phrases []string, n int) []string {
	if len(phrases) <= n {
		return phrases
	}
	return phrases[:n]
}
