package session

import "strings"

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// ExtractThinking splits inline `<think>...</think>` segments out of
// assistant content (spec.md §9 reasoning preservation, format 1): the
// returned display text has every segment removed so a UI can render just
// the clean answer, while the caller is expected to keep the original
// content string untouched in the stored Message so history stays
// round-trip-stable. The concatenated thinking text is returned separately
// for folding into ReasoningDetails.
func ExtractThinking(content string) (display string, thinking string) {
	var displayBuf, thinkBuf strings.Builder
	rest := content
	for {
		start := strings.Index(rest, thinkOpenTag)
		if start < 0 {
			displayBuf.WriteString(rest)
			break
		}
		displayBuf.WriteString(rest[:start])
		afterOpen := rest[start+len(thinkOpenTag):]
		end := strings.Index(afterOpen, thinkCloseTag)
		if end < 0 {
			// Unterminated tag: treat the remainder as thinking, matching
			// how a truncated stream would leave it.
			thinkBuf.WriteString(afterOpen)
			break
		}
		thinkBuf.WriteString(afterOpen[:end])
		rest = afterOpen[end+len(thinkCloseTag):]
	}
	return displayBuf.String(), thinkBuf.String()
}
