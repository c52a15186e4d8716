package textkit

import (
	"strings"
	"unicode"
)

// IsEmoji reports whether r sits in one of the pictographic blocks. Variant
// selectors and the zero-width joiner count too; sequences like 💪🏼 should
// weigh as fully emoji, not half.
func IsEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs through symbols-extended
		return true
	case r >= 0x1F000 && r <= 0x1F2FF: // mahjong, dominoes, enclosed ideographs
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // arrows, stars
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r == 0x200D: // zero-width joiner
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators (flags)
		return true
	}
	return false
}

// EmojiRatio returns emoji runes over non-whitespace runes, 0 for empty
// text.
func EmojiRatio(s string) float64 {
	total, emoji := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if IsEmoji(r) {
			emoji++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(emoji) / float64(total)
}

// EmojiDominantLines counts the non-empty lines whose visible content is
// more than half emoji. Rows of reaction emoji are a bot-content signature
// even when the overall ratio stays low.
func EmojiDominantLines(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if EmojiRatio(line) > 0.5 {
			count++
		}
	}
	return count
}
