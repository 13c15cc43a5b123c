package panel

import (
	"testing"
)

func TestNewUsesDefaultWidth(t *testing.T) {
	t.Parallel()

	l := New()
	if l.Width() != DefaultWidth {
		t.Fatalf("expected default width %d, got %d", DefaultWidth, l.Width())
	}
	if l.Dragging() {
		t.Fatal("new layout should not be dragging")
	}
}

func TestDragIgnoredWithoutSession(t *testing.T) {
	t.Parallel()

	l := New()
	l.Drag(1920, 100)
	if l.Width() != DefaultWidth {
		t.Fatalf("drag without pointer-down changed width to %d", l.Width())
	}
}

func TestDragClampsToBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		viewportWidth int
		pointerX      int
		want          int
	}{
		{"within bounds", 1920, 1500, 420},
		{"pointer at right edge", 1920, 1920, MinWidth},
		{"pointer far beyond right edge", 1920, 5000, MinWidth},
		{"pointer at left edge", 1920, 0, MaxWidth},
		{"pointer far left of viewport", 1920, -3000, MaxWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := New()
			l.BeginDrag()
			l.Drag(tt.viewportWidth, tt.pointerX)
			if l.Width() != tt.want {
				t.Fatalf("expected width %d, got %d", tt.want, l.Width())
			}
		})
	}
}

func TestWidthStaysBoundedAcrossDragSequence(t *testing.T) {
	t.Parallel()

	l := New()
	l.BeginDrag()
	for x := -5000; x <= 5000; x += 97 {
		l.Drag(1280, x)
		if w := l.Width(); w < MinWidth || w > MaxWidth {
			t.Fatalf("width %d escaped bounds at pointerX=%d", w, x)
		}
	}
	l.EndDrag()

	// Drags after pointer-up must not move the panel.
	final := l.Width()
	l.Drag(1280, 640)
	if l.Width() != final {
		t.Fatalf("drag after EndDrag changed width from %d to %d", final, l.Width())
	}
}
