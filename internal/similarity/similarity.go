package similarity

import (
	"regexp"
	"strings"
)

// Thresholds for picking which text of a post is worth comparing. A short
// title+body is noise; repost boilerplate needs extra length to count.
const (
	minPrimaryLength       = 20
	minRepostPrimaryLength = 40
	minOCRLength           = 10
)

// TextKind names where a post's comparison text came from.
type TextKind string

const (
	TextPrimary TextKind = "primary"
	TextOCR     TextKind = "ocr"
	TextNone    TextKind = "none"
)

var repostHints = []string{
	"转发", "转载", "转帖", "repost", "分享", "转一下", "via", "原文见", "链接", "link",
}

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	wwwPattern        = regexp.MustCompile(`www\.\S+`)
	mentionPattern    = regexp.MustCompile(`@\S+`)
	hashtagPattern    = regexp.MustCompile(`#\S+#`)
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	contentRunPattern = regexp.MustCompile(`[\p{L}\p{N}_]{10,}`)
)

// Canonicalize lowercases and strips URLs, mentions, hashtags, and anything
// that is not a letter, digit, or underscore in any script, collapsing runs
// of whitespace. Idempotent.
func Canonicalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ToLower(text)
	s = urlPattern.ReplaceAllString(s, " ")
	s = wwwPattern.ReplaceAllString(s, " ")
	s = mentionPattern.ReplaceAllString(s, " ")
	s = hashtagPattern.ReplaceAllString(s, " ")
	s = nonWordPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Score returns a symmetric similarity ratio in [0,1] between the canonical
// forms given: 2*LCS/(len(a)+len(b)) over runes. Empty input on either side
// scores zero.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	left := []rune(a)
	right := []rune(b)
	matched := lcsLength(left, right)
	return 2 * float64(matched) / float64(len(left)+len(right))
}

func lcsLength(left, right []rune) int {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	// Two-row DP keeps memory linear in the shorter side.
	if len(right) > len(left) {
		left, right = right, left
	}

	prev := make([]int, len(right)+1)
	curr := make([]int, len(right)+1)
	for i := 1; i <= len(left); i++ {
		for j := 1; j <= len(right); j++ {
			if left[i-1] == right[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(right)]
}

// ComparisonText selects the text used for lexical clustering: title+body when
// informative, OCR text as fallback, otherwise nothing.
func ComparisonText(title, body, ocr string) (string, TextKind) {
	if isPrimaryInformative(title, body) {
		return strings.TrimSpace(Canonicalize(title) + " " + Canonicalize(body)), TextPrimary
	}
	ocrClean := Canonicalize(ocr)
	if len([]rune(ocrClean)) >= minOCRLength {
		return ocrClean, TextOCR
	}
	return "", TextNone
}

func isPrimaryInformative(title, body string) bool {
	combo := strings.TrimSpace(Canonicalize(title) + " " + Canonicalize(body))
	if len([]rune(combo)) < minPrimaryLength {
		return false
	}
	if hasRepostHint(title) || hasRepostHint(body) {
		if len([]rune(combo)) < minRepostPrimaryLength {
			return false
		}
	}
	return contentRunPattern.MatchString(combo)
}

func hasRepostHint(text string) bool {
	lowered := strings.ToLower(text)
	for _, hint := range repostHints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}
