package llm

import (
	"regexp"
	"strings"
)

var (
	fencedObjectPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")
	fenceEdgePattern    = regexp.MustCompile("(?i)^```(?:json)?\\s*|\\s*```$")
)

// ExtractJSONObject pulls the first syntactically balanced JSON object out of
// free-form model output. Code fences and surrounding commentary are
// tolerated; when no object is found the input is returned unchanged for the
// caller's lenient parse to reject.
func ExtractJSONObject(text string) string {
	s := strings.TrimSpace(text)

	if m := fencedObjectPattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(s, '{')
	if start >= 0 {
		depth := 0
		for i := start; i < len(s); i++ {
			switch s[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return strings.TrimSpace(s[start : i+1])
				}
			}
		}
	}
	return s
}

// StripCodeFence removes a leading/trailing markdown fence from model output.
func StripCodeFence(text string) string {
	return strings.TrimSpace(fenceEdgePattern.ReplaceAllString(strings.TrimSpace(text), ""))
}
