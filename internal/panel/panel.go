// Package panel tracks chat-panel layout state for a session.
package panel

// Width bounds in pixels. The panel resets to DefaultWidth on every new
// session; width is never persisted.
const (
	MinWidth     = 260
	MaxWidth     = 720
	DefaultWidth = 384
)

// Layout tracks the resizable chat panel width via pointer drags. The panel
// is anchored to the right viewport edge, so width is derived from the
// horizontal distance between the pointer and that edge. Pure state, no
// error conditions.
type Layout struct {
	width    int
	dragging bool
}

// New returns a layout at the default width.
func New() *Layout {
	return &Layout{width: DefaultWidth}
}

// Width returns the current panel width.
func (l *Layout) Width() int {
	return l.width
}

// Dragging reports whether a resize session is active.
func (l *Layout) Dragging() bool {
	return l.dragging
}

// BeginDrag starts a resize session (pointer-down on the handle).
func (l *Layout) BeginDrag() {
	l.dragging = true
}

// Drag recomputes width from the pointer position while a resize session is
// active. Pointer positions outside the viewport still produce a clamped
// width. Ignored when no session is active.
func (l *Layout) Drag(viewportWidth, pointerX int) {
	if !l.dragging {
		return
	}
	l.width = clampWidth(viewportWidth - pointerX)
}

// EndDrag ends the resize session (pointer-up).
func (l *Layout) EndDrag() {
	l.dragging = false
}

func clampWidth(w int) int {
	if w < MinWidth {
		return MinWidth
	}
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}
