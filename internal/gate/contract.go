package gate

import (
	"regexp"
	"strings"

	"replygate/internal/config"
	"replygate/internal/textkit"
)

// OutputContract enforces that the reply is postable as one short-form post,
// not a disguised thread: capped length, at most two line breaks, no thread
// markers, at most two paragraphs, at most two bullet lines.
//
// On violation it attempts repair before rejecting. Repairs are targeted at
// the violations actually present; truncation in particular only runs when
// length was the sole defect, because cutting a reply that also needed
// structural surgery risks posting a fragment of a thread.
type OutputContract struct {
	cfg config.Contract
}

func NewOutputContract(cfg config.Contract) *OutputContract {
	return &OutputContract{cfg: cfg}
}

// Check validates, sanitizes on violation, and re-validates. A pass after
// sanitization carries the rewritten text; the caller must post that text,
// never the original.
func (o *OutputContract) Check(text string) Result {
	if code, _ := o.validate(text); code == "" {
		return pass(NameContract)
	}
	sanitized := o.sanitize(text)
	if code, detail := o.validate(sanitized); code != "" {
		return skip(NameContract, code, detail)
	}
	r := pass(NameContract)
	r.SanitizedText = sanitized
	r.Detail = map[string]any{"sanitized": true}
	return r
}

// validate returns the first violated rule in the contract's declaration
// order, or empty when compliant.
func (o *OutputContract) validate(text string) (Code, map[string]any) {
	if n := textkit.RuneLen(text); n > o.cfg.MaxLength {
		return CodeTooLong, map[string]any{"chars": n, "max_chars": o.cfg.MaxLength}
	}
	if n := strings.Count(text, "\n"); n > o.cfg.MaxLineBreaks {
		return CodeTooManyLines, map[string]any{"line_breaks": n, "max_line_breaks": o.cfg.MaxLineBreaks}
	}
	if labels := textkit.ThreadMarkers(text); len(labels) > 0 {
		return CodeThreadMarkers, map[string]any{"markers": labels}
	}
	if n := countParagraphs(text); n > o.cfg.MaxParagraphs {
		return CodeMultipleParagraphs, map[string]any{"paragraphs": n, "max_paragraphs": o.cfg.MaxParagraphs}
	}
	if n := countBulletLines(text); n > o.cfg.MaxBulletLines {
		return CodeBulletList, map[string]any{"bullet_lines": n, "max_bullet_lines": o.cfg.MaxBulletLines}
	}
	return "", nil
}

func (o *OutputContract) violations(text string) map[Code]bool {
	v := make(map[Code]bool)
	if textkit.RuneLen(text) > o.cfg.MaxLength {
		v[CodeTooLong] = true
	}
	if strings.Count(text, "\n") > o.cfg.MaxLineBreaks {
		v[CodeTooManyLines] = true
	}
	if textkit.HasThreadMarker(text) {
		v[CodeThreadMarkers] = true
	}
	if countParagraphs(text) > o.cfg.MaxParagraphs {
		v[CodeMultipleParagraphs] = true
	}
	if countBulletLines(text) > o.cfg.MaxBulletLines {
		v[CodeBulletList] = true
	}
	return v
}

var blankRunRE = regexp.MustCompile(`(?:[ \t]*\n){3,}`)

func (o *OutputContract) sanitize(text string) string {
	violations := o.violations(text)
	out := text
	if violations[CodeThreadMarkers] {
		out = textkit.StripThreadMarkers(out)
	}
	out = blankRunRE.ReplaceAllString(out, "\n\n")
	if violations[CodeMultipleParagraphs] {
		out = firstParagraph(out)
	}
	if violations[CodeTooLong] && len(violations) == 1 {
		out = truncateAtSentence(out, o.cfg.MaxLength)
	}
	return strings.TrimSpace(out)
}

// hardTruncateFloor is the rune index past which a sentence boundary must
// exist for boundary truncation; below it the cut switches to a hard
// truncate with ellipsis.
const hardTruncateFloor = 100

func truncateAtSentence(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := -1
	for i := 0; i < max; i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
			cut = i + 1
		}
	}
	if cut > hardTruncateFloor {
		return strings.TrimSpace(string(runes[:cut]))
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

var paragraphSplitRE = regexp.MustCompile(`\n[ \t]*\n`)

func countParagraphs(text string) int {
	count := 0
	for _, p := range paragraphSplitRE.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			count++
		}
	}
	return count
}

func firstParagraph(text string) string {
	for _, p := range paragraphSplitRE.Split(text, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(text)
}

var bulletPrefixes = []string{"- ", "* ", "• ", "– "}

func countBulletLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, p := range bulletPrefixes {
			if strings.HasPrefix(trimmed, p) {
				count++
				break
			}
		}
	}
	return count
}
