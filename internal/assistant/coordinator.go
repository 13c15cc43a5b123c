package assistant

import (
	"errors"

	"github.com/codearena-dev/codearena/internal/domain"
)

var (
	// ErrNoPendingSuggestion is returned when accept or reject is called
	// with nothing offered.
	ErrNoPendingSuggestion = errors.New("no pending suggestion")
	// ErrEditorUnavailable is returned when accepting a suggestion while
	// no editor surface is attached.
	ErrEditorUnavailable = errors.New("editor unavailable")
)

// State is the coordinator's suggestion lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StatePendingInsert  State = "pending-insert"
	StatePendingReplace State = "pending-replace"
)

// EditorSurface is the slice of editor behavior the coordinator needs to
// apply an accepted suggestion.
type EditorSurface interface {
	Selection() domain.SelectionRange
	InsertAtCursor(text string)
	ReplaceRange(r domain.SelectionRange, text string) bool
}

// Coordinator tracks at most one pending code suggestion extracted from the
// assistant transcript and applies it to the editor on acceptance. Not safe
// for concurrent use; the owning session serializes access.
type Coordinator struct {
	editor            EditorSurface
	pending           *domain.PendingSuggestion
	lastSuggestedCode string
}

// NewCoordinator creates a coordinator bound to an editor surface. A nil
// surface is allowed; suggestions can then be offered and rejected but not
// accepted.
func NewCoordinator(editor EditorSurface) *Coordinator {
	return &Coordinator{editor: editor}
}

// State derives the lifecycle state from the pending suggestion.
func (c *Coordinator) State() State {
	if c.pending == nil {
		return StateIdle
	}
	if c.pending.Kind == domain.SuggestionReplace {
		return StatePendingReplace
	}
	return StatePendingInsert
}

// Pending returns the current suggestion, or nil when idle.
func (c *Coordinator) Pending() *domain.PendingSuggestion {
	return c.pending
}

// LastSuggestedCode returns the most recently resolved suggestion text.
func (c *Coordinator) LastSuggestedCode() string {
	return c.lastSuggestedCode
}

// SetLastSuggestedCode seeds the suppression text, used when restoring a
// persisted session.
func (c *Coordinator) SetLastSuggestedCode(code string) {
	c.lastSuggestedCode = code
}

// Reevaluate inspects the transcript for a new code suggestion after an
// assistant message arrives. The same extracted text never produces a
// second offer: an offer identical to the pending one, or to the last
// accepted or rejected code, leaves the state unchanged.
func (c *Coordinator) Reevaluate(transcript []domain.ChatMessage) {
	code := ExtractLatestCodeBlock(transcript)
	if code == "" {
		return
	}
	if c.pending != nil && c.pending.Code == code {
		return
	}
	if c.lastSuggestedCode == code {
		return
	}

	suggestion := &domain.PendingSuggestion{Kind: domain.SuggestionInsert, Code: code}
	if c.editor != nil {
		if sel := c.editor.Selection(); !sel.IsEmpty() {
			r := sel
			suggestion.Kind = domain.SuggestionReplace
			suggestion.Range = &r
		}
	}
	c.pending = suggestion
}

// Accept applies the pending suggestion to the editor and resolves it. A
// replace whose recorded range has become invalid leaves the buffer
// untouched but still resolves the suggestion.
func (c *Coordinator) Accept() error {
	if c.pending == nil {
		return ErrNoPendingSuggestion
	}
	if c.editor == nil {
		return ErrEditorUnavailable
	}

	switch c.pending.Kind {
	case domain.SuggestionReplace:
		if c.pending.Range != nil && !c.pending.Range.IsEmpty() {
			c.editor.ReplaceRange(*c.pending.Range, c.pending.Code)
		}
	default:
		c.editor.InsertAtCursor(c.pending.Code)
	}

	c.lastSuggestedCode = c.pending.Code
	c.pending = nil
	return nil
}

// Reject discards the pending suggestion without touching the editor. The
// rejected text still suppresses re-offers.
func (c *Coordinator) Reject() error {
	if c.pending == nil {
		return ErrNoPendingSuggestion
	}
	c.lastSuggestedCode = c.pending.Code
	c.pending = nil
	return nil
}
