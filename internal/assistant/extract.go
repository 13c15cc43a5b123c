package assistant

import (
	"regexp"
	"strings"

	"github.com/codearena-dev/codearena/internal/domain"
)

// codeBlockPattern matches one fenced code region: opening fence, optional
// language tag, newline, body, closing fence. Non-greedy so a message with
// several blocks yields one match per block.
var codeBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")

// ExtractLatestCodeBlock returns the body of the last fenced code block in
// the transcript's final message, trimmed. Returns empty when the transcript
// is empty, does not end in an assistant message, or the message has no
// fenced block. An assistant reply may show reasoning followed by a final
// corrected snippet — the last block is the authoritative answer.
func ExtractLatestCodeBlock(messages []domain.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}

	last := messages[len(messages)-1]
	if last.Role != domain.RoleAssistant {
		return ""
	}

	matches := codeBlockPattern.FindAllStringSubmatch(last.Content, -1)
	if len(matches) == 0 {
		return ""
	}

	return strings.TrimSpace(matches[len(matches)-1][2])
}
