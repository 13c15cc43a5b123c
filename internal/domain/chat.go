package domain

// Message roles. Every transcript entry carries exactly one of these.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in an assistant transcript. Immutable once appended.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SuggestionKind says how an accepted suggestion is applied to the editor.
type SuggestionKind string

const (
	// SuggestionInsert inserts the code at the current cursor position.
	SuggestionInsert SuggestionKind = "insert"
	// SuggestionReplace replaces the captured selection range with the code.
	SuggestionReplace SuggestionKind = "replace"
)

// SelectionRange is a snapshot of an editor selection as rune offsets into the
// document. A range with Start == End is empty.
type SelectionRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IsEmpty reports whether the range selects no text.
func (r SelectionRange) IsEmpty() bool {
	return r.Start == r.End
}

// PendingSuggestion is a code block offered to the user, awaiting accept or
// reject. At most one is live per session; it is replaced wholesale, never
// mutated. Code is never empty — callers verify the extracted block first.
type PendingSuggestion struct {
	Kind  SuggestionKind  `json:"kind"`
	Code  string          `json:"code"`
	Range *SelectionRange `json:"range,omitempty"` // set for replace only
}
