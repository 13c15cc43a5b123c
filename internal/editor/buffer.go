// Package editor provides the server-side mirror of the browser code editor:
// a document buffer with cursor and selection state, and the WebSocket
// connection registry used to sync it.
package editor

import (
	"github.com/codearena-dev/codearena/internal/domain"
)

// Buffer mirrors the embedded editor's document, cursor and selection. It is
// not safe for concurrent use; the owning session serializes access.
type Buffer struct {
	content []rune
	cursor  int
	sel     domain.SelectionRange

	onSelectionChange func(domain.SelectionRange)
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// OnSelectionChange registers the selection-change notification. The editor
// surface contract requires exactly one observer; later calls replace it.
func (b *Buffer) OnSelectionChange(fn func(domain.SelectionRange)) {
	b.onSelectionChange = fn
}

// Content returns the current document text.
func (b *Buffer) Content() string {
	return string(b.content)
}

// SetContent replaces the document text, clamping cursor and selection.
func (b *Buffer) SetContent(text string) {
	b.content = []rune(text)
	b.cursor = clamp(b.cursor, 0, len(b.content))
	b.sel = domain.SelectionRange{
		Start: clamp(b.sel.Start, 0, len(b.content)),
		End:   clamp(b.sel.End, 0, len(b.content)),
	}
}

// Cursor returns the cursor position as a rune offset.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// SetCursor moves the cursor, clamped into the document.
func (b *Buffer) SetCursor(pos int) {
	b.cursor = clamp(pos, 0, len(b.content))
}

// Selection returns the current selection range.
func (b *Buffer) Selection() domain.SelectionRange {
	return b.sel
}

// SetSelection updates the selection (normalized and clamped), moves the
// cursor to its end, and fires the selection-change notification.
func (b *Buffer) SetSelection(r domain.SelectionRange) {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	r.Start = clamp(r.Start, 0, len(b.content))
	r.End = clamp(r.End, 0, len(b.content))

	b.sel = r
	b.cursor = r.End
	if b.onSelectionChange != nil {
		b.onSelectionChange(r)
	}
}

// InsertAtCursor inserts text at the cursor and moves the cursor past it.
func (b *Buffer) InsertAtCursor(text string) {
	ins := []rune(text)
	rest := append([]rune{}, b.content[b.cursor:]...)
	b.content = append(b.content[:b.cursor], append(ins, rest...)...)
	b.cursor += len(ins)
	b.sel = domain.SelectionRange{Start: b.cursor, End: b.cursor}
}

// ReplaceRange replaces the given range with text. Returns false without
// touching the document when the range is empty or no longer fits it.
func (b *Buffer) ReplaceRange(r domain.SelectionRange, text string) bool {
	if r.IsEmpty() || r.Start < 0 || r.End > len(b.content) || r.Start > r.End {
		return false
	}

	ins := []rune(text)
	rest := append([]rune{}, b.content[r.End:]...)
	b.content = append(b.content[:r.Start], append(ins, rest...)...)
	b.cursor = r.Start + len(ins)
	b.sel = domain.SelectionRange{Start: b.cursor, End: b.cursor}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
