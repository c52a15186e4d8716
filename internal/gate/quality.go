package gate

import (
	"regexp"
	"strings"

	"replygate/internal/config"
	"replygate/internal/textkit"
)

// TargetContent is the quality filter's input: target text plus whatever
// author metadata capture could see. Everything beyond Text is optional.
type TargetContent struct {
	Text       string
	AuthorName string
	AuthorBio  string
	Extra      string // image caption or alt text when capture extracted one
}

// QualityFilter scores a candidate target before any generation spend.
// Pure; no I/O.
type QualityFilter struct {
	cfg  config.Quality
	home []string
}

func NewQualityFilter(cfg config.Quality, homeKeywords []string) *QualityFilter {
	return &QualityFilter{cfg: cfg, home: homeKeywords}
}

// Deny-order signals. First match wins, so a low-signal emoji wall reports
// LOW_SIGNAL_TARGET, not EMOJI_SPAM_TARGET.
func (q *QualityFilter) Check(c TargetContent) Result {
	text := strings.TrimSpace(c.Text)
	meaningful := len(textkit.MeaningfulTokens(text))

	if textkit.RuneLen(text) < q.cfg.LowSignalMinChars && meaningful < q.cfg.LowSignalMinTokens {
		return skip(NameQuality, CodeLowSignalTarget, map[string]any{
			"chars":             textkit.RuneLen(text),
			"meaningful_tokens": meaningful,
		})
	}

	ratio := textkit.EmojiRatio(text)
	emojiLines := textkit.EmojiDominantLines(text)
	if ratio > q.cfg.EmojiRatioMax || emojiLines >= q.cfg.EmojiLineMax {
		return skip(NameQuality, CodeEmojiSpamTarget, map[string]any{
			"emoji_ratio": ratio,
			"emoji_lines": emojiLines,
		})
	}

	meta := strings.ToLower(strings.Join([]string{text, c.AuthorName, c.AuthorBio}, "\n"))
	if signal := matchSignal(meta, parodyBotSignals); signal != "" {
		return skip(NameQuality, CodeParodyOrBot, map[string]any{"signal": signal})
	}
	if category, term := matchOffLimits(meta); category != "" {
		return skip(NameQuality, CodeOffLimitsTopic, map[string]any{
			"category": category,
			"term":     term,
		})
	}

	score := q.score(c, text, meaningful, ratio)
	r := pass(NameQuality)
	r.Score = score
	r.Detail = map[string]any{"score": score}
	return r
}

// score sums five sub-scores, each clamped to [0,20] before summation.
func (q *QualityFilter) score(c TargetContent, text string, meaningful int, emojiRatio float64) int {
	length := clampScore(textkit.RuneLen(text) / 10)

	emoji := 20
	if q.cfg.EmojiRatioMax > 0 {
		emoji = clampScore(int(20 * (1 - emojiRatio/q.cfg.EmojiRatioMax)))
	}

	content := 0
	if matchAny(text, claimSignalREs) {
		content += 10
	}
	if matchAny(text, questionREs) {
		content += 10
	}
	content = clampScore(content)

	account := 20
	lowMeta := strings.ToLower(c.AuthorName + "\n" + c.AuthorBio)
	if matchSignal(lowMeta, promoSignals) != "" {
		account -= 10
	}
	if trailingDigitsRE.MatchString(strings.TrimSpace(c.AuthorName)) {
		account -= 10
	}
	account = clampScore(account)

	relevance := clampScore(7 * q.homeHits(text+"\n"+c.Extra))

	return length + emoji + content + account + relevance
}

func (q *QualityFilter) homeHits(text string) int {
	low := strings.ToLower(text)
	hits := 0
	for _, kw := range q.home {
		if containsWord(low, kw) {
			hits++
		}
	}
	return hits
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 20 {
		return 20
	}
	return n
}

// Claim-or-question signal families. A target asserting something concrete,
// citing numbers, or asking a question gives a reply something to engage
// with.
var claimSignalREs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(study|trial|research|meta.?analysis|evidence|data|survey)\b`),
	regexp.MustCompile(`(?i)\b(shows?|showed|found|increas\w*|decreas\w*|improv\w*|reduc\w*|boost\w*|linked to|associated with|causes?)\b`),
	regexp.MustCompile(`\d+(?:\.\d+)?\s*%`),
	regexp.MustCompile(`(?i)\b(more|less|better|worse|higher|lower|faster|slower)\s+than\b`),
}

var questionREs = []*regexp.Regexp{
	regexp.MustCompile(`\?`),
	regexp.MustCompile(`(?i)^\s*(why|how|what|when|which|should|does|do|is|are|can)\b`),
}

var trailingDigitsRE = regexp.MustCompile(`\d{5,}$`)

// Lexical signals that the account is parody, automation, or engagement
// bait. Matched against text, author name, and bio together.
var parodyBotSignals = []string{
	"parody", "satire", "fan account", "fan page", "not affiliated",
	"commentary account", "bot account", "automated account", "auto-posted",
	"dm to claim", "follow back", "f4f", "link in bio to win",
}

var promoSignals = []string{
	"promo code", "use my code", "discount link", "affiliate link",
	"sponsored posts", "dm for promo",
}

// Off-limits topics are hard denies regardless of how health-adjacent the
// framing is. "Not health-relevant" is a soft preference handled by the
// relevance sub-score, never by these lists.
var offLimitsSignals = map[string][]string{
	"scam": {
		"guaranteed returns", "double your money", "crypto giveaway",
		"airdrop", "send btc", "send eth", "dm me to invest",
		"forex signals", "get rich quick", "passive income secret",
	},
	"explicit": {
		"onlyfans", "porn", "xxx", "nsfw", "explicit content",
	},
	"extremist": {
		"jihad", "isis", "1488", "white power", "ethnic cleansing",
		"great replacement", "race war", "day of the rope",
	},
	"hate": {
		"subhuman filth", "gas them", "vermin people", "deport them all",
	},
}

func matchSignal(lowText string, signals []string) string {
	for _, s := range signals {
		if strings.Contains(lowText, s) {
			return s
		}
	}
	return ""
}

func matchOffLimits(lowText string) (category, term string) {
	// Deterministic category order for stable detail payloads.
	for _, cat := range []string{"scam", "hate", "explicit", "extremist"} {
		for _, t := range offLimitsSignals[cat] {
			if strings.Contains(lowText, t) {
				return cat, t
			}
		}
	}
	return "", ""
}

func matchAny(s string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// containsWord does substring matching on word boundaries without
// recompiling per keyword.
func containsWord(low, word string) bool {
	idx := 0
	for {
		i := strings.Index(low[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(low[start-1])
		afterOK := end == len(low) || !isWordByte(low[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
