package sanitize

import (
	"strings"
	"testing"
)

func TestIsSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"arithmetic only", "def add(a, b):\n    return a + b", true},
		{"plain loop", "for (let i = 0; i < 10; i++) { sum += i; }", true},
		{"eval call", "eval('2 + 2')", false},
		{"eval mixed case", "EVAL( x )", false},
		{"fetch call", "fetch('https://example.com')", false},
		{"fetch upper case", "FETCH(url)", false},
		{"document access", "document.getElementById('x')", false},
		{"document mixed case", "Document.title = 'x'", false},
		{"function constructor", "const f = new Function('return 1')", false},
		{"timer", "setTimeout(run, 100)", false},
		{"storage", "localStorage.setItem('k', 'v')", false},
		{"dynamic import", "const m = await import('fs')", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsSafe(tt.code); got != tt.want {
				t.Fatalf("IsSafe(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestCheckRecordsOneViolationPerRule(t *testing.T) {
	t.Parallel()

	code := "eval(a); eval(b); fetch(url)"
	violations := Check(code)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations (one per rule), got %d: %+v", len(violations), violations)
	}
}

func TestSanitizeStripsDisallowedPythonImports(t *testing.T) {
	t.Parallel()

	code := "import os\nimport math\nfrom subprocess import run\nprint(math.pi)\n"
	result := Sanitize(code, "python")

	if strings.Contains(result.SanitizedText, "os") {
		t.Errorf("os import survived: %q", result.SanitizedText)
	}
	if strings.Contains(result.SanitizedText, "subprocess") {
		t.Errorf("subprocess import survived: %q", result.SanitizedText)
	}
	if !strings.Contains(result.SanitizedText, "import math") {
		t.Errorf("allow-listed math import was stripped: %q", result.SanitizedText)
	}
	if !strings.Contains(result.SanitizedText, "print(math.pi)") {
		t.Errorf("program body was stripped: %q", result.SanitizedText)
	}
}

func TestSanitizeStripsCommentsAndBlankLines(t *testing.T) {
	t.Parallel()

	code := "// helper\nlet x = 1;\n\n/* block\ncomment */\nlet y = 2;\n"
	result := Sanitize(code, "javascript")

	if strings.Contains(result.SanitizedText, "helper") || strings.Contains(result.SanitizedText, "comment") {
		t.Errorf("comments survived: %q", result.SanitizedText)
	}
	for _, line := range strings.Split(result.SanitizedText, "\n") {
		if strings.TrimSpace(line) == "" {
			t.Fatalf("blank line survived: %q", result.SanitizedText)
		}
	}
	if !strings.Contains(result.SanitizedText, "let x = 1;") || !strings.Contains(result.SanitizedText, "let y = 2;") {
		t.Errorf("code body was damaged: %q", result.SanitizedText)
	}
}

func TestSanitizeRecordsViolationsWithoutFailing(t *testing.T) {
	t.Parallel()

	result := Sanitize("eval('x')\nprint(1)\n", "python")
	if len(result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(result.Violations))
	}
	if result.Violations[0].Rule != "dynamic-evaluation" {
		t.Fatalf("unexpected rule: %q", result.Violations[0].Rule)
	}
	if !strings.Contains(result.SanitizedText, "print(1)") {
		t.Fatalf("sanitize dropped unrelated code: %q", result.SanitizedText)
	}
}

func TestSanitizeJavaAndCppAllowLists(t *testing.T) {
	t.Parallel()

	java := Sanitize("import java.util.List;\nimport java.io.File;\nclass Main {}\n", "java")
	if !strings.Contains(java.SanitizedText, "java.util.List") {
		t.Errorf("allow-listed java.util import was stripped: %q", java.SanitizedText)
	}
	if strings.Contains(java.SanitizedText, "java.io.File") {
		t.Errorf("java.io import survived: %q", java.SanitizedText)
	}

	cpp := Sanitize("#include <vector>\n#include <fstream>\nint main() { return 0; }\n", "cpp")
	if !strings.Contains(cpp.SanitizedText, "<vector>") {
		t.Errorf("allow-listed vector include was stripped: %q", cpp.SanitizedText)
	}
	if strings.Contains(cpp.SanitizedText, "fstream") {
		t.Errorf("fstream include survived: %q", cpp.SanitizedText)
	}
}
